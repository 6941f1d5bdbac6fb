// Command sessiond runs the browser session registry.
//
// Usage:
//
//	# In-memory engine, JSON logs
//	sessiond serve --port 8000
//
//	# Drive a local Chrome, development logs
//	sessiond serve --engine rod --dev
//
//	# Attach to a Chrome started with --remote-debugging-port
//	sessiond serve --engine rod --control-url ws://127.0.0.1:9222/devtools/browser/<id>
//
//	sessiond rules check rules.yaml
//	sessiond rules convert rules.yaml rules.toml
//	sessiond version
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown
package main
