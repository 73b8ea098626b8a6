// Package profiles loads carrier profiles from YAML documents and serves
// them through the ProfileSource contract. The catalog normalizes and
// validates every profile on the way in, so the rest of the module only ever
// sees well-formed configuration.
package profiles
