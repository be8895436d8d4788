// Package vectorindex manages ANN search indexes and builds the inputs they are queried with.
package vectorindex

// Status is the lifecycle state of a search index as reported by the backing store.
type Status string

// Index states. DoesNotExist is synthesized when the store lists no index by that name.
const (
	DoesNotExist Status = "DOES_NOT_EXIST"
	Pending      Status = "PENDING"
	Building     Status = "BUILDING"
	Ready        Status = "READY"
	Stale        Status = "STALE"
	Failed       Status = "FAILED"
	Deleting     Status = "DELETING"
)

var allStatuses = []Status{DoesNotExist, Pending, Building, Ready, Stale, Failed, Deleting}

// ParseStatus maps a raw status string. An empty string means the index is absent;
// anything unrecognized is treated as Failed so it gets rebuilt.
func ParseStatus(raw string) Status {
	if raw == "" {
		return DoesNotExist
	}
	for _, s := range allStatuses {
		if string(s) == raw {
			return s
		}
	}
	return Failed
}
