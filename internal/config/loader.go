package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/fjacquet/prometheus_connector/internal/models"
)

// LoadCatalog binds the catalog file at path to a ConnectorConfig.
//
// Sources, in priority order:
//  1. Environment variables (property names with dots and dashes folded to
//     underscores and uppercased, e.g. PROMETHEUS_URI, PROMETHEUS_AUTH_USER,
//     PROMETHEUS_READ_TIMEOUT)
//  2. The catalog file (YAML; nested sections or flat dotted keys)
//  3. Built-in defaults
//
// Every value passes through the typed ConnectorConfig setters, so duration
// floors, URI parsing and the header grammar are enforced during binding with
// the offending property named. Binding errors are collected rather than
// returned one at a time, and the cross-field rules run once at the end, so a
// broken catalog reports everything wrong with it in a single pass.
func LoadCatalog(path string) (*models.ConnectorConfig, error) {
	// Pick up a .env file when present; a missing one is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)

	// The property names already carry the prometheus. namespace, so no
	// extra env prefix: prometheus.uri resolves to PROMETHEUS_URI.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setCatalogDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	cfg, err := bindCatalog(v)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"catalog":  path,
		"endpoint": cfg.Endpoint().String(),
	}).Info("Catalog loaded")

	return cfg, nil
}

// setCatalogDefaults registers the connector defaults so unset properties
// bind to their documented values.
func setCatalogDefaults(v *viper.Viper) {
	v.SetDefault(models.PropURI, models.DefaultEndpoint)
	v.SetDefault(models.PropQueryChunkSizeDuration, models.DefaultQueryChunkSizeDuration.String())
	v.SetDefault(models.PropMaxQueryRangeDuration, models.DefaultMaxQueryRangeDuration.String())
	v.SetDefault(models.PropCacheTTL, models.DefaultCacheTTL.String())
	v.SetDefault(models.PropReadTimeout, models.DefaultReadTimeout.String())
	v.SetDefault(models.PropAuthHeaderName, models.DefaultAuthHeaderName)
	v.SetDefault(models.PropCaseInsensitiveNameMatching, false)
}

// bindCatalog walks every property through its typed setter and finishes
// with the one-shot cross-field validation.
func bindCatalog(v *viper.Viper) (*models.ConnectorConfig, error) {
	cfg := models.NewConnectorConfig()
	var errs []error

	if err := cfg.SetEndpoint(v.GetString(models.PropURI)); err != nil {
		errs = append(errs, err)
	}

	durations := []struct {
		prop string
		set  func(models.Duration) error
	}{
		{models.PropQueryChunkSizeDuration, cfg.SetQueryChunkSizeDuration},
		{models.PropMaxQueryRangeDuration, cfg.SetMaxQueryRangeDuration},
		{models.PropCacheTTL, cfg.SetCacheTTL},
		{models.PropReadTimeout, cfg.SetReadTimeout},
	}
	for _, binding := range durations {
		d, err := models.ParseDuration(v.GetString(binding.prop))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", binding.prop, err))
			continue
		}
		if err := binding.set(d); err != nil {
			errs = append(errs, err)
		}
	}

	cfg.SetAuthHeaderName(v.GetString(models.PropAuthHeaderName))
	cfg.SetBearerTokenFile(v.GetString(models.PropBearerTokenFile))
	cfg.SetUser(v.GetString(models.PropAuthUser))
	cfg.SetPassword(v.GetString(models.PropAuthPassword))
	cfg.SetCaseInsensitiveNameMatching(v.GetBool(models.PropCaseInsensitiveNameMatching))
	cfg.SetMatchString(v.GetString(models.PropQueryMatchString))
	cfg.SetQueryFunctions(splitFunctionList(v.GetStringSlice(models.PropQueryFunctions)))

	if err := cfg.SetAdditionalHeaders(v.GetString(models.PropAdditionalHeaders)); err != nil {
		errs = append(errs, err)
	}

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitFunctionList flattens the query function property into individual
// names. The property may be a YAML list or a comma-separated string (the
// environment override form); either way the commas still need splitting.
func splitFunctionList(parts []string) []string {
	var functions []string
	for _, part := range parts {
		functions = append(functions, strings.Split(part, ",")...)
	}
	return functions
}
