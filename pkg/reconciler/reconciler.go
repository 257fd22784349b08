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

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/ndrpnt/deka/pkg/objectutil"
)

// BackOffFactory derives a fresh backoff policy for one object. Instances
// must not share mutable state: retry pacing on one object must never
// affect another's.
type BackOffFactory func() backoff.BackOff

// Reconciler converges Kubernetes objects onto the target cluster with
// forced server-side apply and idempotent deletes, retrying transient
// failures per object.
type Reconciler struct {
	client       ClusterClient
	fieldManager string
	namespace    string
	newBackOff   BackOffFactory
}

// NewReconciler creates a Reconciler for the given cluster client.
// The namespace overrides the client default for objects that carry none;
// pass an empty string to keep the client default. A nil factory disables
// retries, every transient failure is then final.
func NewReconciler(client ClusterClient, fieldManager, namespace string, newBackOff BackOffFactory) *Reconciler {
	if newBackOff == nil {
		newBackOff = func() backoff.BackOff { return &backoff.StopBackOff{} }
	}

	return &Reconciler{
		client:       client,
		fieldManager: fieldManager,
		namespace:    namespace,
		newBackOff:   newBackOff,
	}
}

// ReconcileAll reconciles the given objects concurrently, one goroutine per
// object. Concurrency is unbounded here, the cluster client is expected to
// limit in-flight requests at the transport level. Every object runs to
// completion regardless of sibling failures; the returned error aggregates
// the failures of all objects that did not converge, and the change set
// reports the ones that did.
func (r *Reconciler) ReconcileAll(ctx context.Context, objects []*unstructured.Unstructured) (*ChangeSet, error) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	changeSet := NewChangeSet()

	for _, object := range objects {
		object := object
		wg.Add(1)
		go func() {
			defer wg.Done()

			entry, err := r.Reconcile(ctx, object)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			changeSet.Add(*entry)
		}()
	}
	wg.Wait()

	return changeSet, utilerrors.NewAggregate(errs)
}

// Reconcile converges a single object to its desired action. Transient
// failures are retried under a backoff policy derived for this object;
// malformed input fails immediately without touching the cluster.
func (r *Reconciler) Reconcile(ctx context.Context, object *unstructured.Unstructured) (*ChangeSetEntry, error) {
	subject := objectutil.FmtUnstructured(object)

	action, err := ParseAction(object.GetAnnotations())
	if err != nil {
		return nil, fmt.Errorf("%s reconcile failed: %w", subject, err)
	}

	if object.GetKind() == "" || object.GetName() == "" {
		return nil, fmt.Errorf("%s reconcile failed: object must have a kind and a name", subject)
	}

	gv, err := schema.ParseGroupVersion(object.GetAPIVersion())
	if err != nil {
		return nil, fmt.Errorf("%s reconcile failed: %w", subject, err)
	}
	gvk := gv.WithKind(object.GetKind())

	namespace := object.GetNamespace()
	if namespace == "" {
		namespace = r.namespace
	}
	if namespace == "" {
		namespace = r.client.DefaultNamespace()
	}

	data, err := object.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%s reconcile failed: %w", subject, err)
	}

	bo := r.newBackOff()
	for {
		entry, err := r.attempt(ctx, object, gvk, action, namespace, data)
		if err == nil {
			bo.Reset()
			return entry, nil
		}

		next := bo.NextBackOff()
		if next == backoff.Stop {
			return nil, fmt.Errorf("%s %s failed: %w", subject, action, err)
		}

		select {
		case <-time.After(next):
		case <-ctx.Done():
			return nil, fmt.Errorf("%s %s failed: %w", subject, action, ctx.Err())
		}
	}
}

// attempt runs one iteration of the retry loop: discovery, then dispatch.
// A nil error is a terminal success; any error is transient and fed to the
// backoff. Mappings are resolved from scratch on every attempt.
func (r *Reconciler) attempt(ctx context.Context, object *unstructured.Unstructured, gvk schema.GroupVersionKind, action Action, namespace string, data []byte) (*ChangeSetEntry, error) {
	mapping, err := r.client.Discover(ctx, gvk)
	if err != nil {
		// an absent kind while deleting means the desired state already holds
		if action == ActionDelete && meta.IsNoMatchError(err) {
			return r.changeSetEntry(object, UnchangedAction), nil
		}
		return nil, err
	}

	name := object.GetName()
	if mapping.Scope.Name() != meta.RESTScopeNameNamespace {
		namespace = ""
	}

	switch action {
	case ActionDelete:
		if err := r.client.Delete(ctx, mapping, namespace, name); err != nil {
			if apierrors.IsNotFound(err) {
				return r.changeSetEntry(object, UnchangedAction), nil
			}
			return nil, err
		}
		return r.changeSetEntry(object, DeletedAction), nil
	default:
		if err := r.client.Apply(ctx, mapping, namespace, name, r.fieldManager, data); err != nil {
			return nil, err
		}
		return r.changeSetEntry(object, AppliedAction), nil
	}
}

func (r *Reconciler) changeSetEntry(object *unstructured.Unstructured, action ChangeAction) *ChangeSetEntry {
	return &ChangeSetEntry{Subject: objectutil.FmtUnstructured(object), Action: action}
}
