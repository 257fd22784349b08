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
	"context"
	"fmt"
	"os"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/ndrpnt/deka/pkg/config"
	"github.com/ndrpnt/deka/pkg/objectutil"
	"github.com/ndrpnt/deka/pkg/reconciler"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply reconciles the given Kubernetes manifests using forced server-side apply.",
	Long: `Apply reconciles each manifest independently and concurrently: objects are
applied (or deleted, per the action annotation) with per-object retries, and
a failing object never blocks the others.`,
	RunE: runApplyCmd,
}

type applyFlags struct {
	filename     []string
	fieldManager string
}

var applyArgs applyFlags

func init() {
	applyCmd.Flags().StringSliceVarP(&applyArgs.filename, "filename", "f", nil,
		"Path to Kubernetes manifest(s) in multi-doc YAML or JSON format. Use '-' to read from stdin.")
	applyCmd.Flags().StringVar(&applyArgs.fieldManager, "field-manager", "",
		"Name of the manager used to track field ownership. Defaults to the config file value.")

	rootCmd.AddCommand(applyCmd)
}

func runApplyCmd(cmd *cobra.Command, args []string) error {
	if len(applyArgs.filename) == 0 {
		return fmt.Errorf("-f is required")
	}

	objects, err := readObjects(applyArgs.filename)
	if err != nil {
		return err
	}

	fieldManager := applyArgs.fieldManager
	if fieldManager == "" {
		fieldManager = cfg.FieldManager.Name
	}

	kubeClient, err := newKubeClient(kubeconfigArgs, rootArgs.parallelism)
	if err != nil {
		return fmt.Errorf("client init failed: %w", err)
	}

	rec := reconciler.NewReconciler(kubeClient, fieldManager, rootArgs.namespace, newBackOff(cfg.Retry))

	logger.Println(fmt.Sprintf("reconciling %v manifest(s)...", len(objects)))

	// the retry budget is the only deadline: an object keeps retrying until
	// its backoff gives up, not until a wall-clock context expires
	changeSet, err := rec.ReconcileAll(context.Background(), objects)
	for _, change := range changeSet.Entries {
		logger.Println(change.String())
	}

	return err
}

func readObjects(filenames []string) ([]*unstructured.Unstructured, error) {
	var objects []*unstructured.Unstructured

	for _, filename := range filenames {
		if filename == "-" {
			objs, err := objectutil.ReadObjects(os.Stdin)
			if err != nil {
				return nil, fmt.Errorf("reading from stdin failed: %w", err)
			}
			objects = append(objects, objs...)
			continue
		}

		f, err := os.Open(filename)
		if err != nil {
			return nil, err
		}

		objs, err := objectutil.ReadObjects(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s failed: %w", filename, err)
		}
		objects = append(objects, objs...)
	}

	return objects, nil
}

// newBackOff derives the per-object retry policy from the config file and
// the --timeout flag.
func newBackOff(retry *config.Retry) reconciler.BackOffFactory {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = retry.InitialInterval.Duration
		b.RandomizationFactor = retry.RandomizationFactor
		b.Multiplier = retry.Multiplier
		b.MaxInterval = retry.MaxInterval.Duration
		b.MaxElapsedTime = rootArgs.timeout
		b.Reset()
		return b
	}
}
