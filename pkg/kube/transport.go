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

package kube

import (
	"net/http"

	"golang.org/x/sync/semaphore"
	"k8s.io/client-go/transport"
)

// limitTransport returns a transport wrapper that caps the number of
// concurrent requests. The reconciler fans out one goroutine per object
// without bounds; this is where the fan-out meets a limit.
func limitTransport(limit int) transport.WrapperFunc {
	sem := semaphore.NewWeighted(int64(limit))

	return func(rt http.RoundTripper) http.RoundTripper {
		return &limitRoundTripper{next: rt, sem: sem}
	}
}

type limitRoundTripper struct {
	next http.RoundTripper
	sem  *semaphore.Weighted
}

func (t *limitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.sem.Acquire(req.Context(), 1); err != nil {
		return nil, err
	}
	defer t.sem.Release(1)

	return t.next.RoundTrip(req)
}
