// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package passes

import (
	"time"

	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ir/irerr"
	"github.com/mir-org/mir/ops"
	"go.uber.org/zap"
)

// defaultFixedPointCap bounds the iterations of a fixed-point pass
// when the options leave the cap unset.
const defaultFixedPointCap = 100

// Options configure a pass manager.
type Options struct {
	// Strict validates the program after every pass instead of once at
	// the end of the pipeline.
	Strict bool
	// FixedPointCap bounds the iterations of fixed-point passes.
	// 0 means the default cap.
	FixedPointCap int
	// Logger receives one info line per executed pass. Nil means no
	// logging.
	Logger *zap.Logger
	// Registry resolves operators during validation, folding and
	// rewriting. It must be the registry the program was built
	// against. Nil means the default registry.
	Registry *ops.Registry
}

// Manager runs an ordered pass pipeline over a program.
type Manager struct {
	opts   Options
	passes []Pass
}

// NewManager resolves pass names against the registry and returns a
// manager running them in the given order.
func NewManager(opts Options, passNames ...string) (*Manager, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.FixedPointCap <= 0 {
		opts.FixedPointCap = defaultFixedPointCap
	}
	if opts.Registry == nil {
		opts.Registry = ops.Default()
	}
	m := &Manager{opts: opts}
	for _, name := range passNames {
		pass, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		injectRegistry(pass, opts.Registry)
		m.passes = append(m.passes, pass)
	}
	return m, nil
}

// registryUser is implemented by passes consulting the operator
// registry, so the manager can hand them the configured one.
type registryUser interface {
	setRegistry(*ops.Registry)
}

func injectRegistry(pass Pass, reg *ops.Registry) {
	if fp, ok := pass.(*fixedPoint); ok {
		injectRegistry(fp.inner, reg)
		return
	}
	if u, ok := pass.(registryUser); ok {
		u.setRegistry(reg)
	}
}

// Run executes the pipeline on the program, in place. The first
// failing pass aborts the pipeline; because passes analyze before they
// mutate, the program is then still the result of the previous passes.
func (m *Manager) Run(prog *ir.Program) error {
	for _, pass := range m.passes {
		start := time.Now()
		changed, err := m.runPass(pass, prog)
		if err != nil {
			return irerr.Wrapf(err, "pass %s", pass.Name())
		}
		m.opts.Logger.Info("pass executed",
			zap.String("pass", pass.Name()),
			zap.Bool("changed", changed),
			zap.Duration("duration", time.Since(start)),
		)
		if m.opts.Strict {
			if err := ValidateWithRegistry(prog, m.opts.Registry); err != nil {
				return irerr.Wrapf(err, "after pass %s", pass.Name())
			}
		}
	}
	if !m.opts.Strict {
		return ValidateWithRegistry(prog, m.opts.Registry)
	}
	return nil
}

// runPass executes one pass, iterating fixed-point passes until they
// report no change. Hitting the iteration cap keeps the last stable
// result and continues the pipeline.
func (m *Manager) runPass(pass Pass, prog *ir.Program) (bool, error) {
	fp, iterate := pass.(*fixedPoint)
	if !iterate {
		return pass.Run(prog)
	}
	changed := false
	for i := 0; ; i++ {
		if i == m.opts.FixedPointCap {
			m.opts.Logger.Warn("fixed-point iteration cap reached",
				zap.String("pass", pass.Name()),
				zap.Int("cap", m.opts.FixedPointCap),
			)
			return changed, nil
		}
		c, err := fp.inner.Run(prog)
		if err != nil {
			return changed, err
		}
		if !c {
			return changed, nil
		}
		changed = true
		m.opts.Logger.Debug("fixed-point iteration",
			zap.String("pass", pass.Name()),
			zap.Int("iteration", i+1),
		)
	}
}
