// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// taintmodels computes a taint model for every method of a Go program: which of its
// positions produce or consume tainted data, and how taint moves between its
// parameters and its return value. Models seeded from generator rules and
// hand-authored files are refined over the call graph until they stabilize, then
// written out as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/awslabs/ar-taint-models/analysis/config"
	"github.com/awslabs/ar-taint-models/analysis/fixpoint"
	"github.com/awslabs/ar-taint-models/analysis/loader"
	"github.com/awslabs/ar-taint-models/analysis/model"
	"github.com/awslabs/ar-taint-models/analysis/modelgen"
	"github.com/awslabs/ar-taint-models/internal/formatutil"
	"golang.org/x/tools/go/ssa"
)

const usage = `Compute taint models for the methods of your packages.
Usage:
  taintmodels [options] <package path(s)>
Examples:
  % taintmodels -config config.yaml -output models.json ./...
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

//gocyclo:ignore
func run(args []string) error {
	flags := flag.NewFlagSet("taintmodels", flag.ExitOnError)
	configPath := flags.String("config", "", "config file path")
	output := flags.String("output", "models.json", "output file for the computed models")
	verbose := flags.Bool("verbose", false, "verbose output, overrides config log-level")
	flags.Usage = func() {
		fmt.Fprint(flags.Output(), usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	patterns := flags.Args()
	if len(patterns) == 0 {
		return fmt.Errorf("expected at least one package pattern\n%s", usage)
	}

	cfg := config.NewDefault()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	logger := config.NewLogGroup(cfg)

	logger.Infof(formatutil.Faint("Reading sources"))
	program, err := loader.LoadProgram(patterns)
	if err != nil {
		return fmt.Errorf("could not load program: %v", err)
	}

	graph := loader.CHACallGraph(program.Program, func(fn *ssa.Function) bool {
		return fn.Pkg != nil && cfg.MatchPkgFilter(fn.Pkg.Pkg.Path())
	})
	logger.Infof("%d methods under analysis", len(graph.Methods()))

	registry := fixpoint.NewRegistry()
	if err := seedModels(cfg, logger, graph, registry); err != nil {
		return err
	}

	state := &fixpoint.State{Config: cfg, Logger: logger, Registry: registry}
	start := time.Now()
	if err := fixpoint.Run(state, graph, loader.Derive()); err != nil {
		return fmt.Errorf("model computation failed: %v", err)
	}
	logger.Infof("Fixpoint reached in %3.4f s", time.Since(start).Seconds())

	fields := loader.NewFieldChecker()
	registry.ForEach(func(method model.Method, m *model.Model) {
		final := m.Copy()
		final.CollapseInvalidPaths(fields)
		registry.Publish(method, final)
	})

	fixpoint.LogStats(registry, logger)

	outPath := *output
	if cfg.ReportsDir != "" && !filepath.IsAbs(outPath) {
		outPath = filepath.Join(cfg.ReportsDir, outPath)
	}
	if err := writeModels(cfg, registry, outPath); err != nil {
		return err
	}
	logger.Infof("Models written to %s", formatutil.Green(outPath))
	return nil
}

// seedModels registers the initial model of every method: the join of all matching
// generator rules, then any hand-authored model for the method, then empty.
func seedModels(cfg *config.Config, logger *config.LogGroup, graph *loader.ProgramGraph, registry *fixpoint.Registry) error {
	var rules []modelgen.Rule
	for _, file := range cfg.ModelGeneratorFiles {
		loaded, err := modelgen.LoadRules(cfg.RelPath(file))
		if err != nil {
			return err
		}
		rules = append(rules, loaded...)
	}
	if len(rules) > 0 {
		logger.Infof("%d generator rules loaded", len(rules))
	}

	byDescriptor := map[string]model.Method{}
	for _, method := range graph.Methods() {
		byDescriptor[method.String()] = method
		initial, err := initialModel(rules, method)
		if err != nil {
			return err
		}
		registry.Register(method, initial)
	}

	for _, file := range cfg.ModelFiles {
		if err := loadModelFile(cfg, logger, registry, byDescriptor, cfg.RelPath(file)); err != nil {
			return err
		}
	}
	return nil
}

func initialModel(rules []modelgen.Rule, method model.Method) (*model.Model, error) {
	m, ok := method.(*loader.Method)
	if !ok {
		return model.EmptyModel().Instantiate(method)
	}
	generated, err := modelgen.Apply(rules, method, m.Info())
	if err != nil {
		return nil, err
	}
	if generated == nil {
		return model.EmptyModel().Instantiate(method)
	}
	return generated, nil
}

// loadModelFile joins the hand-authored models of one JSON file into the registered
// initial models. The file is an array of model records, each naming its method.
// Records for methods outside the analyzed program are skipped with a warning.
func loadModelFile(cfg *config.Config, logger *config.LogGroup, registry *fixpoint.Registry,
	byDescriptor map[string]model.Method, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read model file: %w", err)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("could not unmarshal model file %s: %w", path, err)
	}
	for i, record := range records {
		var header struct {
			Method string `json:"method"`
		}
		if err := json.Unmarshal(record, &header); err != nil {
			return fmt.Errorf("model %d of %s: %w", i, path, err)
		}
		method, ok := byDescriptor[header.Method]
		if !ok {
			logger.Warnf("model file %s: no method %q in the program", path, header.Method)
			continue
		}
		authored, err := model.FromJSON(method, record, !cfg.LenientModels)
		if err != nil {
			return fmt.Errorf("model %d of %s: %w", i, path, err)
		}
		// Join into the authored model so its freeze flags and frozen contents
		// survive: JoinWith keeps the receiver's frozen state.
		if err := authored.JoinWith(registry.Get(method)); err != nil {
			return fmt.Errorf("model %d of %s: %w", i, path, err)
		}
		registry.Publish(method, authored)
	}
	return nil
}

// writeModels exports every non-empty model as one JSON array.
func writeModels(cfg *config.Config, registry *fixpoint.Registry, path string) error {
	var records []json.RawMessage
	var exportErr error
	registry.ForEach(func(_ model.Method, m *model.Model) {
		if m.Empty() || exportErr != nil {
			return
		}
		var data []byte
		var err error
		if cfg.ExportMinimal {
			data, err = m.ToJSON(model.ExportMinimal)
		} else {
			data, err = m.ToJSONWithPosition()
		}
		if err != nil {
			exportErr = err
			return
		}
		records = append(records, data)
	})
	if exportErr != nil {
		return exportErr
	}
	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}
