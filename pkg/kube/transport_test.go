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
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

type concurrencyRecorder struct {
	mu     sync.Mutex
	active int
	max    int
}

func (r *concurrencyRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	r.active++
	if r.active > r.max {
		r.max = r.active
	}
	r.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	r.mu.Lock()
	r.active--
	r.mu.Unlock()

	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func TestLimitTransport(t *testing.T) {
	g := NewWithT(t)

	recorder := &concurrencyRecorder{}
	rt := limitTransport(2)(recorder)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req, err := http.NewRequest(http.MethodGet, "http://cluster.local", nil)
			if err != nil {
				errs <- err
				return
			}
			if _, err := rt.RoundTrip(req); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	g.Expect(recorder.max).To(BeNumerically("<=", 2))
	g.Expect(recorder.max).To(BeNumerically(">", 0))
}
