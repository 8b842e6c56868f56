package config_test

import (
	"errors"
	"io/fs"
	"log/slog"
	"testing"

	. "github.com/onsi/gomega"
	"pgregory.net/rapid"

	"github.com/toejough/weavetest/internal/config"
	naming "github.com/toejough/weavetest/internal/synth/1_naming"
)

func TestLoad_WithoutEnvVarUsesDefaults(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg, err := config.Load(env(""), func(string) ([]byte, error) {
		t.Fatal("no file should be read")

		return nil, nil
	})

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg).To(Equal(config.Default()))
	g.Expect(cfg.Level()).To(Equal(slog.LevelWarn))
	g.Expect(cfg.Tags.Caller).To(Equal(naming.CallerTag))
}

func TestLoad_ReadsTheNamedFile(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	var readPath string

	cfg, err := config.Load(env("/etc/weavetest.yaml"), func(path string) ([]byte, error) {
		readPath = path

		return []byte("log_level: debug\ntrace_transforms: true\ntags:\n  proxy: Shim\n"), nil
	})

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(readPath).To(Equal("/etc/weavetest.yaml"))
	g.Expect(cfg.Level()).To(Equal(slog.LevelDebug))
	g.Expect(cfg.TraceTransforms).To(BeTrue())
	g.Expect(cfg.Tags.Proxy).To(Equal("Shim"))
	g.Expect(cfg.Tags.Selector).To(Equal(naming.SelectorTag), "unset tags keep their defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, err := config.Load(env("/nope.yaml"), func(string) ([]byte, error) { return nil, fs.ErrNotExist })

	g.Expect(err).To(MatchError(config.ErrInvalidConfig))
	g.Expect(err).To(MatchError(ContainSubstring(config.EnvVar)))
}

func TestLoad_UnreadableFile(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	denied := errors.New("permission denied")

	_, err := config.Load(env("/secret.yaml"), func(string) ([]byte, error) { return nil, denied })

	g.Expect(err).To(MatchError(denied))
	g.Expect(err).NotTo(MatchError(config.ErrInvalidConfig))
}

func TestParse_EmptyDocumentIsTheDefault(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg, err := config.Parse(nil)

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg).To(Equal(config.Default()))
}

func TestParse_Rejections(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		data string
	}{
		{"unknown key", "verbose: true\n"},
		{"bad level", "log_level: loud\n"},
		{"empty tag", "tags:\n  caller: \"\"\n"},
		{"delimiter in tag", "tags:\n  selector: Pick__Me\n"},
		{"malformed yaml", "log_level: [\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			cfg, err := config.Parse([]byte(tc.data))

			g.Expect(err).To(MatchError(config.ErrInvalidConfig))
			g.Expect(cfg).To(Equal(config.Default()))
		})
	}
}

func TestValidate_AcceptsDelimiterFreeTags(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		g := NewWithT(rt)
		tag := rapid.StringMatching(`[A-Za-z][A-Za-z0-9]{0,15}`).Draw(rt, "tag")
		level := rapid.SampledFrom([]string{"debug", "info", "warn", "error", "DEBUG", "Info"}).Draw(rt, "level")

		cfg := config.Default()
		cfg.LogLevel = level
		cfg.Tags.Caller = tag

		g.Expect(cfg.Validate()).To(Succeed())
	})
}

func env(path string) func(string) string {
	return func(key string) string {
		if key == config.EnvVar {
			return path
		}

		return ""
	}
}
