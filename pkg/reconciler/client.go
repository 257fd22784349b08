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

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// ClusterClient is the capability surface the Reconciler consumes from the
// target cluster. The kube package provides the client-go based
// implementation; tests substitute fakes.
//
// Error classification happens on the caller side through the apimachinery
// predicates: Discover must surface "kind not found" as an error matched by
// meta.IsNoMatchError, and Delete must surface "object not found" as an
// error matched by apierrors.IsNotFound.
type ClusterClient interface {
	// Discover resolves the given group/version/kind to its REST mapping.
	// Implementations must not cache mappings: the Reconciler re-discovers
	// on every attempt so that an API server outage or a CRD installed
	// mid-retry heals without intervention.
	Discover(ctx context.Context, gvk schema.GroupVersionKind) (*meta.RESTMapping, error)

	// Apply patches the named object with the given payload using forced
	// server-side apply under the fieldManager identity. The namespace is
	// empty for cluster-scoped mappings.
	Apply(ctx context.Context, mapping *meta.RESTMapping, namespace, name, fieldManager string, data []byte) error

	// Delete removes the named object.
	Delete(ctx context.Context, mapping *meta.RESTMapping, namespace, name string) error

	// DefaultNamespace returns the namespace used for namespaced objects
	// when neither the object nor the Reconciler carries one.
	DefaultNamespace() string
}
