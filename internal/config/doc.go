// Package config loads fluxora configuration.
//
// Configuration files are CUE (or JSON, which is valid CUE) and are unified
// with an embedded #Config schema, so defaults, types and enumerations are
// enforced by CUE. Cross-field rules CUE cannot express cleanly are checked
// afterwards by Validate, which reports every violation, not just the first.
//
// ${VAR} references in a file are expanded from the environment before
// compilation, so secrets can stay out of the file:
//
//	auth: secret: "${FLUXORA_SECRET}"
package config
