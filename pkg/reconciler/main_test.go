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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var (
	podGVK       = schema.GroupVersionKind{Version: "v1", Kind: "Pod"}
	serviceGVK   = schema.GroupVersionKind{Version: "v1", Kind: "Service"}
	namespaceGVK = schema.GroupVersionKind{Version: "v1", Kind: "Namespace"}
)

type applyRequest struct {
	Resource     string
	Namespace    string
	Name         string
	FieldManager string
	Data         string
}

type deleteRequest struct {
	Resource  string
	Namespace string
	Name      string
}

// fakeCluster is a scripted ClusterClient. Failure counters inject that many
// transient errors before the call starts succeeding.
type fakeCluster struct {
	mu sync.Mutex

	mappings  map[schema.GroupVersionKind]*meta.RESTMapping
	namespace string

	discoverFailures int
	applyFailures    int
	deleteFailures   int
	absent           bool // deletes respond "not found"

	discovers int
	applies   []applyRequest
	deletes   []deleteRequest
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{
		mappings: map[schema.GroupVersionKind]*meta.RESTMapping{
			podGVK: {
				Resource:         schema.GroupVersionResource{Version: "v1", Resource: "pods"},
				GroupVersionKind: podGVK,
				Scope:            meta.RESTScopeNamespace,
			},
			serviceGVK: {
				Resource:         schema.GroupVersionResource{Version: "v1", Resource: "services"},
				GroupVersionKind: serviceGVK,
				Scope:            meta.RESTScopeNamespace,
			},
			namespaceGVK: {
				Resource:         schema.GroupVersionResource{Version: "v1", Resource: "namespaces"},
				GroupVersionKind: namespaceGVK,
				Scope:            meta.RESTScopeRoot,
			},
		},
		namespace: "default",
	}
}

func (c *fakeCluster) Discover(_ context.Context, gvk schema.GroupVersionKind) (*meta.RESTMapping, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.discovers++
	if c.discoverFailures > 0 {
		c.discoverFailures--
		return nil, errors.New("the server is currently unable to handle the request")
	}

	mapping, ok := c.mappings[gvk]
	if !ok {
		return nil, &meta.NoKindMatchError{GroupKind: gvk.GroupKind(), SearchedVersions: []string{gvk.Version}}
	}
	return mapping, nil
}

func (c *fakeCluster) Apply(_ context.Context, mapping *meta.RESTMapping, namespace, name, fieldManager string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.applyFailures > 0 {
		c.applyFailures--
		return apierrors.NewInternalError(errors.New("etcd cluster is unavailable or misconfigured"))
	}

	c.applies = append(c.applies, applyRequest{
		Resource:     mapping.Resource.Resource,
		Namespace:    namespace,
		Name:         name,
		FieldManager: fieldManager,
		Data:         string(data),
	})
	return nil
}

func (c *fakeCluster) Delete(_ context.Context, mapping *meta.RESTMapping, namespace, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deleteFailures > 0 {
		c.deleteFailures--
		return apierrors.NewInternalError(errors.New("etcd cluster is unavailable or misconfigured"))
	}

	if c.absent {
		return apierrors.NewNotFound(mapping.Resource.GroupResource(), name)
	}

	c.deletes = append(c.deletes, deleteRequest{
		Resource:  mapping.Resource.Resource,
		Namespace: namespace,
		Name:      name,
	})
	return nil
}

func (c *fakeCluster) DefaultNamespace() string {
	return c.namespace
}

// backOffCounter records Reset and NextBackOff calls across all the
// per-object instances derived from its factory.
type backOffCounter struct {
	mu     sync.Mutex
	resets int
	nexts  int
}

// factory derives a zero-delay policy that gives up after limit retries.
func (c *backOffCounter) factory(limit int) BackOffFactory {
	return func() backoff.BackOff {
		return &countingBackOff{counter: c, limit: limit}
	}
}

func (c *backOffCounter) assert(t *testing.T, resets, nexts int) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resets != resets {
		t.Errorf("unexpected number of Reset calls: want %d, got %d", resets, c.resets)
	}
	if c.nexts != nexts {
		t.Errorf("unexpected number of NextBackOff calls: want %d, got %d", nexts, c.nexts)
	}
}

type countingBackOff struct {
	counter *backOffCounter
	limit   int
	retries int
}

func (b *countingBackOff) Reset() {
	b.counter.mu.Lock()
	b.counter.resets++
	b.counter.mu.Unlock()

	b.retries = 0
}

func (b *countingBackOff) NextBackOff() time.Duration {
	b.counter.mu.Lock()
	b.counter.nexts++
	b.counter.mu.Unlock()

	b.retries++
	if b.retries > b.limit {
		return backoff.Stop
	}
	return 0
}

func pod(name string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Pod",
		"metadata": map[string]interface{}{
			"name": name,
		},
		"spec": map[string]interface{}{
			"containers": []interface{}{
				map[string]interface{}{"name": "example", "image": "example-image"},
			},
		},
	}}
}

func service(name string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Service",
		"metadata": map[string]interface{}{
			"name": name,
		},
		"spec": map[string]interface{}{},
	}}
}

func withAnnotation(object *unstructured.Unstructured, key, value string) *unstructured.Unstructured {
	annotations := object.GetAnnotations()
	if annotations == nil {
		annotations = make(map[string]string)
	}
	annotations[key] = value
	object.SetAnnotations(annotations)
	return object
}

func mustMarshal(t *testing.T, object *unstructured.Unstructured) string {
	t.Helper()
	data, err := object.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
