// Package casetable embeds the nested case table core in a Go process.
//
// The client talks to a host bridge over HTTP, keeps the collection tree of
// the selected dataset in memory and follows the host's selection and
// structural notifications.
//
//	client, _ := casetable.New(ctx, casetable.WithBridge("http://localhost:9090", ""))
//	defer client.Close()
//
//	_ = client.Select(ctx, "Mammals")
//	state := client.State()
//	_, _ = client.Collections().AddAttribute(ctx, "animals", "newAttr")
//	res, _ := client.Cases().Edit(ctx, 200, "Mass (kg)", 812.3)
//
// Notifications the host pushes to the embedding process are fed in with
// Client.Deliver.
package casetable
