// Package core contains the canonical carrier-integration domain: profiles,
// tokens, batches, the delivery journal, and the contracts the surrounding
// packages implement. Lower-level packages such as soap, transfer, and
// download depend on this package; core must not depend on them.
package core
