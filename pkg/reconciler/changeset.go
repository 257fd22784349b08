/*
Copyright 2023 The deka authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package reconciler

import "fmt"

// ChangeAction represents the outcome of reconciling one object.
type ChangeAction string

const (
	AppliedAction ChangeAction = "applied"
	DeletedAction ChangeAction = "deleted"

	// UnchangedAction marks delete targets that were already absent,
	// either because the object is gone or the whole kind is unknown
	// to the cluster.
	UnchangedAction ChangeAction = "unchanged"
)

// ChangeSet holds the outcomes of a reconciliation batch.
// Entries are unordered, objects complete in arbitrary order.
type ChangeSet struct {
	Entries []ChangeSetEntry
}

func NewChangeSet() *ChangeSet {
	return &ChangeSet{Entries: []ChangeSetEntry{}}
}

func (c *ChangeSet) Add(e ChangeSetEntry) {
	c.Entries = append(c.Entries, e)
}

// ChangeSetEntry defines the outcome of the action performed on an object.
type ChangeSetEntry struct {
	// Subject represents the object ID in the format 'kind/namespace/name'.
	Subject string
	// Action represents the action taken by the reconciler for this object.
	Action ChangeAction
}

func (e ChangeSetEntry) String() string {
	return fmt.Sprintf("%s %s", e.Subject, e.Action)
}
