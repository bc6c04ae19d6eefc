// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

/*
Package config loads layered configuration with koanf.

Precedence, lowest to highest:

 1. Built-in defaults (defaultConfig)
 2. YAML file: $CONFIG_PATH, ./config.yaml, /etc/zeta/config.yaml
 3. Environment variables listed in envMappings

Example config.yaml:

	collector:
	  base_url: https://collector.example.com/api
	  api_key: secret
	  project_id: zeta-demo
	telemetry:
	  behaviour_enabled: true
	  flush_schedule: "*/5 * * * *"
	replay:
	  gesture_lead_time: 330ms
	prefs:
	  backend: badger
	  path: /data/prefs

Collector credentials are only required when behaviour upload or log
forwarding is enabled.
*/
package config
