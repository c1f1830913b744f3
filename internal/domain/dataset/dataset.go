// Package dataset describes the host's data contexts as the plugin lists them.
package dataset

// Info is one entry of the host's dataset list.
type Info struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
}

// Names returns the dataset names in list order.
func Names(infos []Info) []string {
	out := make([]string, len(infos))
	for i, d := range infos {
		out[i] = d.Name
	}
	return out
}

// Contains reports whether a dataset called name is listed.
func Contains(infos []Info, name string) bool {
	for _, d := range infos {
		if d.Name == name {
			return true
		}
	}
	return false
}
