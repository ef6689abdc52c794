// ABOUTME: Compiler running the full fabric pipeline for one spec
// ABOUTME: Wiring and rules branches run concurrently over the same immutable topology

package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/markalston/fabric-planner/backend/models"
	"github.com/mitchellh/hashstructure/v2"
	"golang.org/x/sync/errgroup"
)

// Compiler wires the pipeline stages together
type Compiler struct {
	profiles  ProfileLookup
	catalog   SwitchCatalog
	topology  *TopologyCalculator
	allocator *UplinkAllocator
	builder   *WiringBuilder
	rules     *RulesEngine
}

// NewCompiler creates a compiler. A nil catalog falls back to one backed by
// the profiles.
func NewCompiler(profiles ProfileLookup, catalog SwitchCatalog, opts ...WiringOption) *Compiler {
	if catalog == nil {
		catalog = NewRegistryCatalog(profiles)
	}
	return &Compiler{
		profiles:  profiles,
		catalog:   catalog,
		topology:  NewTopologyCalculator(profiles),
		allocator: NewUplinkAllocator(),
		builder:   NewWiringBuilder(profiles, opts...),
		rules:     NewRulesEngine(),
	}
}

// Topology exposes the compiler's calculator
func (c *Compiler) Topology() *TopologyCalculator { return c.topology }

// Allocator exposes the compiler's allocator
func (c *Compiler) Allocator() *UplinkAllocator { return c.allocator }

// Rules exposes the compiler's rules engine
func (c *Compiler) Rules() *RulesEngine { return c.rules }

// Catalog exposes the catalog rules are evaluated against
func (c *Compiler) Catalog() SwitchCatalog { return c.catalog }

// Profiles exposes the profile lookup
func (c *Compiler) Profiles() ProfileLookup { return c.profiles }

// Compile runs the pipeline. The only error besides cancellation is a
// missing switch profile at wiring time.
func (c *Compiler) Compile(ctx context.Context, spec models.FabricSpec) (*models.CompileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fingerprint, err := Fingerprint(spec)
	if err != nil {
		return nil, err
	}

	ns := spec.Normalize()
	topo := c.topology.ComputeNormalized(ns)
	result := &models.CompileResult{
		Fingerprint: fingerprint,
		Topology:    topo,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		alloc := c.allocator.AllocateSpec(ns, topo, c.profiles)
		if err := gctx.Err(); err != nil {
			return err
		}
		wiring, err := c.builder.Build(spec, alloc)
		if err != nil {
			return err
		}
		result.Allocation = alloc
		result.Wiring = wiring
		result.Validation = ValidateWiring(wiring)
		return nil
	})
	g.Go(func() error {
		result.Rules = c.rules.Evaluate(spec, topo, c.catalog)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Debug("Fabric compiled",
		"fabric", spec.Name,
		"fingerprint", fingerprint,
		"blocking", result.Blocking(),
	)
	return result, nil
}

// Fingerprint returns a stable hash of a spec, used as a cache key
func Fingerprint(spec models.FabricSpec) (string, error) {
	h, err := hashstructure.Hash(spec, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint spec: %w", err)
	}
	return fmt.Sprintf("%016x", h), nil
}
