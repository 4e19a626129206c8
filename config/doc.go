// Package config loads framekit runtime configuration from YAML.
//
// A file only needs the keys it overrides; everything else keeps the values from
// Default. Durations are Go duration strings ("250ms", "2s").
//
//	scheduler:
//	  workers: 4
//	mirror:
//	  root_name: world
//	  retry:
//	    min_backoff: 100ms
//	    max_backoff: 500ms
//	log:
//	  level: debug
package config
