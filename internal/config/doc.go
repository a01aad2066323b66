// Package config loads Runnel's runtime configuration. Settings layer in
// increasing precedence: built-in defaults, an optional YAML file, then
// RUNNEL_* environment variables.
//
// Example:
//
//	cfg, err := config.Load(config.FindConfigFile())
//	if err != nil {
//	    return err
//	}
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config
