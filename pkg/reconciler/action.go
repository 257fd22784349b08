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

// ActionAnnotation is the annotation key that selects the action
// performed on an object. Objects without it are applied.
const ActionAnnotation = "deka.ndrpnt.dev/action"

// Action represents the operation requested for an object.
type Action string

const (
	ActionApply  Action = "apply"
	ActionDelete Action = "delete"
)

// InvalidActionError is returned when the action annotation carries a
// value outside the Action set. It is terminal and never retried.
type InvalidActionError struct {
	Value string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action %q, must be %q or %q", e.Value, ActionApply, ActionDelete)
}

// ParseAction resolves the action requested through the given annotations.
// A missing annotation defaults to ActionApply. Values are matched
// case-sensitively.
func ParseAction(annotations map[string]string) (Action, error) {
	value, ok := annotations[ActionAnnotation]
	if !ok {
		return ActionApply, nil
	}

	switch Action(value) {
	case ActionApply:
		return ActionApply, nil
	case ActionDelete:
		return ActionDelete, nil
	}

	return "", &InvalidActionError{Value: value}
}
