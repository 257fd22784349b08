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

// Package kube provides the client-go based cluster client consumed by the
// reconciler package.
package kube

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
)

// Client talks to a cluster through the discovery and dynamic API clients.
// It satisfies reconciler.ClusterClient.
type Client struct {
	discovery discovery.DiscoveryInterface
	dynamic   dynamic.Interface
	namespace string
}

// NewClient creates a Client for the given REST config. The namespace is the
// client-level default for namespaced objects that carry none. A parallelism
// greater than zero caps the number of in-flight API requests at the
// transport level. The given config is left untouched.
func NewClient(cfg *rest.Config, namespace string, parallelism int) (*Client, error) {
	cfg = rest.CopyConfig(cfg)
	if parallelism > 0 {
		cfg.Wrap(limitTransport(parallelism))
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery client initialization failed: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("dynamic client initialization failed: %w", err)
	}

	return NewClientFor(discoveryClient, dynamicClient, namespace), nil
}

// NewClientFor creates a Client from existing API clients.
func NewClientFor(discoveryClient discovery.DiscoveryInterface, dynamicClient dynamic.Interface, namespace string) *Client {
	if namespace == "" {
		namespace = metav1.NamespaceDefault
	}

	return &Client{
		discovery: discoveryClient,
		dynamic:   dynamicClient,
		namespace: namespace,
	}
}

// Discover resolves the given group/version/kind against the API server.
// The mapper is rebuilt from a fresh discovery run on every call so that
// callers observe newly installed kinds without restarting.
func (c *Client) Discover(ctx context.Context, gvk schema.GroupVersionKind) (*meta.RESTMapping, error) {
	groupResources, err := restmapper.GetAPIGroupResources(c.discovery)
	if err != nil {
		return nil, err
	}

	mapper := restmapper.NewDiscoveryRESTMapper(groupResources)
	return mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
}

// Apply patches the named object with forced server-side apply under the
// given field manager.
func (c *Client) Apply(ctx context.Context, mapping *meta.RESTMapping, namespace, name, fieldManager string, data []byte) error {
	force := true
	opts := metav1.PatchOptions{
		FieldManager: fieldManager,
		Force:        &force,
	}

	_, err := c.resource(mapping, namespace).Patch(ctx, name, types.ApplyPatchType, data, opts)
	return err
}

// Delete removes the named object. "Not found" responses are passed through
// untouched so that callers can classify them.
func (c *Client) Delete(ctx context.Context, mapping *meta.RESTMapping, namespace, name string) error {
	return c.resource(mapping, namespace).Delete(ctx, name, metav1.DeleteOptions{})
}

// DefaultNamespace returns the namespace the client was configured with.
func (c *Client) DefaultNamespace() string {
	return c.namespace
}

func (c *Client) resource(mapping *meta.RESTMapping, namespace string) dynamic.ResourceInterface {
	if namespace != "" && mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		return c.dynamic.Resource(mapping.Resource).Namespace(namespace)
	}
	return c.dynamic.Resource(mapping.Resource)
}
