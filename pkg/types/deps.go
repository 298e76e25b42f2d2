package types

// StrategyKind names one method of obtaining a dependency.
type StrategyKind string

const (
	// StrategyPrebuilt fetches a prebuilt artifact for the target.
	StrategyPrebuilt StrategyKind = "prebuilt"
	// StrategySource compiles the dependency from a source checkout,
	// passing acceleration flags derived from the build target.
	StrategySource StrategyKind = "source"
	// StrategyLocal copies the dependency from a local directory.
	StrategyLocal StrategyKind = "local"
)

// AcquisitionStrategy is one entry in a dependency's ordered strategy chain.
type AcquisitionStrategy struct {
	Kind StrategyKind `json:"kind"`
	// Kind-specific parameters. Prebuilt: "url", optionally "sha256".
	// Source: "dir" (checkout root). Local: "dir".
	Params map[string]string `json:"params,omitempty"`
}

// DependencySpec declares one native component the builder must place into
// the isolated environment before packaging. Strategies are tried in order;
// the first to succeed wins.
type DependencySpec struct {
	Name       string                `json:"name"`
	Required   bool                  `json:"required"`
	Strategies []AcquisitionStrategy `json:"strategies"`
}
