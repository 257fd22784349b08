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
	"os"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/ndrpnt/deka/pkg/config"
)

var VERSION = "1.0.0-dev.0"

const PROJECT = "deka"

var rootCmd = &cobra.Command{
	Use:           PROJECT,
	Version:       VERSION,
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "A command line utility to apply Kubernetes manifests the dumb way.",
	Long: `Deka reconciles a batch of Kubernetes manifests with forced server-side apply,
retrying each object independently until it converges or the retry budget runs out:

- deka apply -f <manifests path|-> [-n <namespace>] [--field-manager <name>]

Objects annotated with '` + "deka.ndrpnt.dev/action: delete" + `' are deleted
instead of applied; deleting an absent object is a no-op.
`,
}

type rootFlags struct {
	timeout     time.Duration
	namespace   string
	parallelism int
}

var (
	rootArgs = rootFlags{}
	logger   = stderrLogger{stderr: os.Stderr}
	cfg      = config.NewConfig()
)

var kubeconfigArgs = genericclioptions.NewConfigFlags(false)

func init() {
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", 5*time.Minute,
		"The length of time to retry an object before giving up. Zero means retry indefinitely.")
	rootCmd.PersistentFlags().IntVar(&rootArgs.parallelism, "parallelism", 10,
		"Limit for the number of in-flight API requests. Zero disables the limit.")

	kubeconfigArgs.Timeout = nil
	kubeconfigArgs.Namespace = nil
	kubeconfigArgs.AddFlags(rootCmd.PersistentFlags())

	rootCmd.PersistentFlags().StringVarP(&rootArgs.namespace, "namespace", "n", "",
		"If present, the namespace scope for objects that don't set one.")

	rootCmd.DisableAutoGenTag = true
	rootCmd.SetOut(os.Stdout)
}

func main() {
	loadConfig()
	if err := rootCmd.Execute(); err != nil {
		logger.Println(`✗`, err)
		os.Exit(1)
	}
}

func loadConfig() {
	if c, err := config.Read(""); err != nil {
		logger.Println(`✗`, fmt.Errorf("loading the config failed, error: %w", err))
	} else {
		cfg = c
	}
}
