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

// Package reconciler converges Kubernetes objects onto a cluster the dumb way.
//
// The Reconciler performs the following actions:
// - resolves the requested action (apply or delete) from the object annotations
// - resolves the effective namespace for each object
// - discovers the REST mapping for the object kind on every attempt
// - applies objects with forced server-side apply, or deletes them idempotently
// - retries transient failures per object under a pluggable backoff policy
// - reconciles all objects of a batch concurrently and independently,
//   aggregating the failures without aborting the siblings
package reconciler
