package configloader

import (
	"github.com/hyp3rd/ewrap"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/pkg/format"
	"github.com/tidelog/tidelog/pkg/sinks"
)

var (
	// ErrUnknownOutput indicates an output name with no matching sink.
	ErrUnknownOutput = ewrap.New("unknown output name")
	// ErrUnknownFormatter indicates a formatter name missing from the
	// default registry.
	ErrUnknownFormatter = ewrap.New("unknown formatter name")
	// ErrMissingFilePath indicates a file output without a file.path key.
	ErrMissingFilePath = ewrap.New("file output requires file.path")
)

// Output names resolvable from configuration.
const (
	ConsoleOutput = "console"
	FileOutput    = "file"
	MemoryOutput  = "memory"
	NoneOutput    = "none"
)

// rawConfig is the loader's decoding target. Pointer fields distinguish
// "absent" from zero values so unset keys keep their defaults.
type rawConfig struct {
	Name          string   `mapstructure:"name"          yaml:"name"`
	Level         string   `mapstructure:"level"         yaml:"level"`
	Synchronous   *bool    `mapstructure:"synchronous"   yaml:"synchronous"`
	QueueCapacity *int     `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	PayloadBudget *int64   `mapstructure:"payload_budget" yaml:"payload_budget"`
	PayloadSlots  *int     `mapstructure:"payload_slots"  yaml:"payload_slots"`
	StackTraces   string   `mapstructure:"stack_traces"   yaml:"stack_traces"`
	Formatter     string   `mapstructure:"formatter"      yaml:"formatter"`
	Timestamps    *bool    `mapstructure:"timestamps"     yaml:"timestamps"`
	Outputs       []string `mapstructure:"outputs"        yaml:"outputs"`
	Console       struct {
		Colors   *bool `mapstructure:"colors"    yaml:"colors"`
		ForceTTY *bool `mapstructure:"force_tty" yaml:"force_tty"`
	} `mapstructure:"console" yaml:"console"`
	File struct {
		Path     string `mapstructure:"path"     yaml:"path"`
		MaxSize  *int64 `mapstructure:"max_size" yaml:"max_size"`
		Compress *bool  `mapstructure:"compress" yaml:"compress"`
	} `mapstructure:"file" yaml:"file"`
}

func applyRaw(raw rawConfig) (*tidelog.Config, error) {
	cfg := tidelog.DefaultConfig()

	if raw.Name != "" {
		cfg.Name = raw.Name
	}

	if raw.Level != "" {
		level, err := tidelog.ParseLevel(raw.Level)
		if err != nil {
			return nil, ewrap.Wrap(err, "invalid level").
				WithMetadata("level", raw.Level)
		}

		cfg.MinimumLevel = level
	}

	if raw.Synchronous != nil {
		cfg.Synchronous = *raw.Synchronous
	}

	if raw.QueueCapacity != nil {
		cfg.QueueCapacity = *raw.QueueCapacity
	}

	if raw.PayloadBudget != nil {
		cfg.PayloadBudgetBytes = *raw.PayloadBudget
	}

	if raw.PayloadSlots != nil {
		cfg.PayloadInitialSlots = *raw.PayloadSlots
	}

	if raw.StackTraces != "" {
		level, err := tidelog.ParseLevel(raw.StackTraces)
		if err != nil {
			return nil, ewrap.Wrap(err, "invalid stack trace level").
				WithMetadata("level", raw.StackTraces)
		}

		cfg.CaptureStackTraces = true
		cfg.StackTraceLevel = level
	}

	for _, name := range raw.Outputs {
		sink, err := buildSink(name, raw)
		if err != nil {
			return nil, err
		}

		if sink != nil {
			cfg.Sinks = append(cfg.Sinks, sink)
		}
	}

	return &cfg, nil
}

func buildSink(name string, raw rawConfig) (tidelog.Sink, error) {
	switch name {
	case ConsoleOutput:
		formatter, err := buildFormatter(raw, consolePalette(raw))
		if err != nil {
			return nil, err
		}

		return sinks.NewConsoleSink(sinks.ConsoleOptions{Formatter: formatter}), nil

	case FileOutput:
		if raw.File.Path == "" {
			return nil, ErrMissingFilePath
		}

		formatter, err := buildFormatter(raw, format.ColorConfig{})
		if err != nil {
			return nil, err
		}

		var maxSize int64
		if raw.File.MaxSize != nil {
			maxSize = *raw.File.MaxSize
		}

		compress := false
		if raw.File.Compress != nil {
			compress = *raw.File.Compress
		}

		sink, err := sinks.NewFileSink(sinks.FileOptions{
			Path:      raw.File.Path,
			MaxSize:   maxSize,
			Compress:  compress,
			Formatter: formatter,
		})
		if err != nil {
			return nil, ewrap.Wrap(err, "building file sink")
		}

		return sink, nil

	case MemoryOutput:
		formatter, err := buildFormatter(raw, format.ColorConfig{})
		if err != nil {
			return nil, err
		}

		return sinks.NewMemorySink(sinks.MemoryOptions{Formatter: formatter}), nil

	case NoneOutput:
		return sinks.NewNopSink(), nil

	default:
		return nil, ewrap.Wrap(ErrUnknownOutput, "resolving output").
			WithMetadata("output", name)
	}
}

// buildFormatter constructs a fresh formatter per sink so per-config options
// never mutate the shared registry instances. Names outside the built-in two
// resolve through the default registry and are used as registered.
func buildFormatter(raw rawConfig, colors format.ColorConfig) (format.Formatter, error) {
	disableTimestamp := raw.Timestamps != nil && !*raw.Timestamps

	switch raw.Formatter {
	case "", format.TextFormatterName:
		tf := format.NewTextFormatter()
		tf.DisableTimestamp = disableTimestamp
		tf.Color = colors

		return tf, nil

	case format.JSONFormatterName:
		jf := format.NewJSONFormatter()
		jf.DisableTimestamp = disableTimestamp

		return jf, nil

	default:
		formatter, ok := format.Default().Get(raw.Formatter)
		if !ok {
			return nil, ewrap.Wrap(ErrUnknownFormatter, "resolving formatter").
				WithMetadata("formatter", raw.Formatter)
		}

		return formatter, nil
	}
}

func consolePalette(raw rawConfig) format.ColorConfig {
	if raw.Console.Colors != nil && !*raw.Console.Colors {
		return format.ColorConfig{}
	}

	palette := format.DefaultColorConfig()
	if raw.Console.ForceTTY != nil {
		palette.ForceTTY = *raw.Console.ForceTTY
	}

	return palette
}

func allKeys() []string {
	return []string{
		"name",
		"level",
		"synchronous",
		"queue_capacity",
		"payload_budget",
		"payload_slots",
		"stack_traces",
		"formatter",
		"timestamps",
		"outputs",
		"console.colors",
		"console.force_tty",
		"file.path",
		"file.max_size",
		"file.compress",
	}
}
