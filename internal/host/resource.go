package host

import (
	"strconv"
	"strings"
)

// Top-level resources and notification families.
const (
	DataContextList       = "dataContextList"
	DocumentChangeNotice  = "documentChangeNotice"
	dataContextChangeBase = "dataContextChangeNotice"
)

// Resource builds bracketed resource paths such as
// dataContext[Mammals].collection[Cases].caseByIndex[3].
type Resource struct {
	b strings.Builder
}

// DataContext starts a path at a dataset.
func DataContext(name string) *Resource {
	r := &Resource{}
	r.seg("dataContext", name)
	return r
}

// DataContextChangeNotice is the notification resource for a dataset.
func DataContextChangeNotice(name string) string {
	return dataContextChangeBase + "[" + name + "]"
}

// Collection appends .collection[name].
func (r *Resource) Collection(name string) *Resource { return r.seg("collection", name) }

// CollectionList appends .collectionList.
func (r *Resource) CollectionList() *Resource { return r.leaf("collectionList") }

// CollectionNew appends .collection for create requests.
func (r *Resource) CollectionNew() *Resource { return r.leaf("collection") }

// Attribute appends .attribute[name].
func (r *Resource) Attribute(name string) *Resource { return r.seg("attribute", name) }

// AttributeNew appends .attribute for create requests.
func (r *Resource) AttributeNew() *Resource { return r.leaf("attribute") }

// AttributeLocation appends .attributeLocation[name], the resource that moves an attribute.
func (r *Resource) AttributeLocation(name string) *Resource { return r.seg("attributeLocation", name) }

// CaseCount appends .caseCount.
func (r *Resource) CaseCount() *Resource { return r.leaf("caseCount") }

// CaseByIndex appends .caseByIndex[i].
func (r *Resource) CaseByIndex(i int) *Resource { return r.seg("caseByIndex", strconv.Itoa(i)) }

// CaseByID appends .caseByID[id].
func (r *Resource) CaseByID(id int) *Resource { return r.seg("caseByID", strconv.Itoa(id)) }

// ItemCount appends .itemCount.
func (r *Resource) ItemCount() *Resource { return r.leaf("itemCount") }

// SelectionList appends .selectionList.
func (r *Resource) SelectionList() *Resource { return r.leaf("selectionList") }

// String returns the path.
func (r *Resource) String() string { return r.b.String() }

func (r *Resource) seg(kind, id string) *Resource {
	r.leaf(kind)
	r.b.WriteByte('[')
	r.b.WriteString(id)
	r.b.WriteByte(']')
	return r
}

func (r *Resource) leaf(kind string) *Resource {
	if r.b.Len() > 0 {
		r.b.WriteByte('.')
	}
	r.b.WriteString(kind)
	return r
}

// DatasetOf extracts the dataset name from a dataContextChangeNotice resource.
func DatasetOf(notice string) (string, bool) {
	prefix := dataContextChangeBase + "["
	if !strings.HasPrefix(notice, prefix) || !strings.HasSuffix(notice, "]") {
		return "", false
	}
	return notice[len(prefix) : len(notice)-1], true
}
