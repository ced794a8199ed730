package saga

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	Name          string            `toml:"name"`
	RetryAttempts int               `toml:"retry_attempts"`
	RetryBackoff  string            `toml:"retry_backoff"`
	Operations    []operationConfig `toml:"operation"`
}

type operationConfig struct {
	Action                    string `toml:"action"`
	Args                      []any  `toml:"args"`
	Compensation              string `toml:"compensation"`
	CompensationArgs          []any  `toml:"compensation_args"`
	RetryAttempts             int    `toml:"retry_attempts"`
	RetryBackoff              string `toml:"retry_backoff"`
	CompensationRetryAttempts int    `toml:"compensation_retry_attempts"`
	CompensationRetryBackoff  string `toml:"compensation_retry_backoff"`
}

// LoadFile builds a saga from a TOML declaration. Action and compensation
// names are resolved through reg. Options given here override the file's
// saga-level settings.
func LoadFile(path string, reg *Registry, opts ...Option) (*Saga, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, configErrorf(-1, "load %s: %v", path, err)
	}
	return fromConfig(raw, meta, reg, opts)
}

// Decode is like LoadFile but reads the declaration from data.
func Decode(data string, reg *Registry, opts ...Option) (*Saga, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return nil, configErrorf(-1, "decode: %v", err)
	}
	return fromConfig(raw, meta, reg, opts)
}

func fromConfig(raw fileConfig, meta toml.MetaData, reg *Registry, opts []Option) (*Saga, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, configErrorf(-1, "unknown keys: %s", strings.Join(keys, ", "))
	}
	if reg == nil {
		return nil, configErrorf(-1, "no action registry")
	}

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return nil, configErrorf(-1, "name is required")
	}

	retry, err := policyFromConfig(-1, "retry", raw.RetryAttempts, raw.RetryBackoff)
	if err != nil {
		return nil, err
	}

	b := NewBuilder(SagaName(name), append([]Option{WithRetry(retry)}, opts...)...)
	for i, oc := range raw.Operations {
		action, err := resolve(reg, i, "action", oc.Action, oc.Args)
		if err != nil {
			return nil, err
		}

		var compensation Call
		if strings.TrimSpace(oc.Compensation) != "" {
			compensation, err = resolve(reg, i, "compensation", oc.Compensation, oc.CompensationArgs)
			if err != nil {
				return nil, err
			}
		} else if len(oc.CompensationArgs) > 0 {
			return nil, configErrorf(i, "compensation_args given without compensation")
		}

		actionRetry, err := policyFromConfig(i, "retry", oc.RetryAttempts, oc.RetryBackoff)
		if err != nil {
			return nil, err
		}
		compRetry, err := policyFromConfig(i, "compensation_retry", oc.CompensationRetryAttempts, oc.CompensationRetryBackoff)
		if err != nil {
			return nil, err
		}

		b.Operation(action, compensation, Retry(actionRetry), CompensationRetry(compRetry))
	}
	return b.Build()
}

func resolve(reg *Registry, index int, what, name string, args []any) (Call, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Call{}, configErrorf(index, "%s name is required", what)
	}
	call, err := reg.Call(ActionName(name), args...)
	if err != nil {
		return Call{}, configErrorf(index, "%s: %v", what, err)
	}
	return call, nil
}

func policyFromConfig(index int, prefix string, attempts int, backoff string) (RetryPolicy, error) {
	p := RetryPolicy{Attempts: attempts}
	if backoff = strings.TrimSpace(backoff); backoff != "" {
		d, err := time.ParseDuration(backoff)
		if err != nil {
			return RetryPolicy{}, configErrorf(index, "parse %s_backoff: %v", prefix, err)
		}
		p.Backoff = d
	}
	if err := p.validate(index, prefix); err != nil {
		return RetryPolicy{}, err
	}
	return p, nil
}

