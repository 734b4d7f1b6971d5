package simulator

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/logger"
)

// Duration wraps time.Duration so scenario files can write "30s" or
// "2m" instead of nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Scenario is a scripted timeline of simulator actions. Steps fire at
// their offset from playback start; with Loop set the timeline restarts
// once the last step has run.
type Scenario struct {
	Name  string `yaml:"name"`
	Loop  bool   `yaml:"loop"`
	Steps []Step `yaml:"steps"`
}

// Step is a single scripted action. Exactly one of the action fields
// must be set.
type Step struct {
	At Duration `yaml:"at"`

	Fire        *FireStep    `yaml:"fire,omitempty"`
	Acknowledge string       `yaml:"acknowledge,omitempty"`
	Resolve     *ResolveStep `yaml:"resolve,omitempty"`
	Drop        bool         `yaml:"drop_connections,omitempty"`
}

// FireStep raises an alert. ID is only needed when a later step
// acknowledges or resolves this alert.
type FireStep struct {
	ID               string  `yaml:"id,omitempty"`
	RuleID           string  `yaml:"rule_id,omitempty"`
	RuleName         string  `yaml:"rule_name"`
	Severity         string  `yaml:"severity"`
	CurrentValue     float64 `yaml:"current_value"`
	ThresholdValue   float64 `yaml:"threshold_value"`
	DeviationPercent float64 `yaml:"deviation_percent"`
}

// ResolveStep closes a previously fired alert.
type ResolveStep struct {
	ID    string `yaml:"id"`
	Notes string `yaml:"notes,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if len(sc.Steps) == 0 {
		return fmt.Errorf("no steps")
	}
	for i, step := range sc.Steps {
		actions := 0
		if step.Fire != nil {
			actions++
			if _, err := alert.ParseSeverity(step.Fire.Severity); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			if step.Fire.RuleName == "" {
				return fmt.Errorf("step %d: fire needs a rule_name", i)
			}
		}
		if step.Acknowledge != "" {
			actions++
		}
		if step.Resolve != nil {
			actions++
			if step.Resolve.ID == "" {
				return fmt.Errorf("step %d: resolve needs an id", i)
			}
		}
		if step.Drop {
			actions++
		}
		if actions != 1 {
			return fmt.Errorf("step %d: needs exactly one action, has %d", i, actions)
		}
	}
	return nil
}

// playScenario runs the timeline against the simulator until ctx is
// cancelled or the (non-looping) scenario finishes. Step failures are
// logged and skipped; a mis-scripted acknowledge should not kill the
// rest of the demo.
func (s *Simulator) playScenario(ctx context.Context, sc *Scenario) {
	steps := make([]Step, len(sc.Steps))
	copy(steps, sc.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].At < steps[j].At })

	log := s.log.With("scenario", sc.Name)
	log.Infof("Playing scenario with %d steps", len(steps))

	for {
		start := time.Now()
		for _, step := range steps {
			wait := time.Duration(step.At) - time.Since(start)
			if wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return
				}
			}
			s.applyStep(log, step)
		}
		if !sc.Loop {
			log.Info("Scenario finished")
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (s *Simulator) applyStep(log *logger.Logger, step Step) {
	switch {
	case step.Fire != nil:
		_, err := s.Fire(alert.DTO{
			ID:               step.Fire.ID,
			RuleID:           step.Fire.RuleID,
			RuleName:         step.Fire.RuleName,
			Severity:         step.Fire.Severity,
			CurrentValue:     step.Fire.CurrentValue,
			ThresholdValue:   step.Fire.ThresholdValue,
			DeviationPercent: step.Fire.DeviationPercent,
		})
		if err != nil {
			log.ErrorWithErr(err, "Scenario fire step rejected")
		}
	case step.Acknowledge != "":
		if _, err := s.Acknowledge(step.Acknowledge, "scenario"); err != nil {
			log.ErrorWithErr(err, "Scenario acknowledge step rejected")
		}
	case step.Resolve != nil:
		if _, err := s.Resolve(step.Resolve.ID, step.Resolve.Notes); err != nil {
			log.ErrorWithErr(err, "Scenario resolve step rejected")
		}
	case step.Drop:
		log.Infof("Dropped %d push clients", s.hub.DropAll())
	}
}
