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

package main

import (
	"fmt"

	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/client-go/rest"

	"github.com/ndrpnt/deka/pkg/kube"
)

func newKubeClient(rcg genericclioptions.RESTClientGetter, parallelism int) (*kube.Client, error) {
	cfg, err := newKubeConfig(rcg)
	if err != nil {
		return nil, err
	}

	// the kubeconfig context namespace is the last resort of the
	// namespace resolution chain
	namespace, _, err := rcg.ToRawKubeConfigLoader().Namespace()
	if err != nil {
		namespace = ""
	}

	kubeClient, err := kube.NewClient(cfg, namespace, parallelism)
	if err != nil {
		return nil, fmt.Errorf("kubernetes client initialization failed: %w", err)
	}

	return kubeClient, nil
}

func newKubeConfig(rcg genericclioptions.RESTClientGetter) (*rest.Config, error) {
	cfg, err := rcg.ToRESTConfig()
	if err != nil {
		return nil, fmt.Errorf("kubeconfig load failed: %w", err)
	}

	cfg.QPS = 50
	cfg.Burst = 100

	return cfg, nil
}
