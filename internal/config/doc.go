// Package config loads the gateway configuration from YAML.
//
// Environment variables in ${VAR_NAME} form are expanded before parsing,
// which keeps secrets (API keys, the JWT secret) out of the file itself:
//
//	server:
//	  http_addr: ":8080"
//	database:
//	  path: "data/lightspace.db"
//	completion:
//	  api_key: "${OPENAI_API_KEY}"
//	  model: "gpt-4o-mini"
//	auth:
//	  jwt_secret: "${LIGHTSPACE_JWT_SECRET}"
//	logging:
//	  level: "info"
//	  format: "text"
//
// An optional modes list overrides the built-in conversation-mode catalog;
// each entry needs id, label, and system_instruction.
package config
