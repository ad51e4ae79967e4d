package scenario

import (
	"fmt"
	"sort"
)

func client(cmd string, delay float64) Step { return Step{Direction: ClientToServer, Command: cmd, Delay: delay} }
func radio(cmd string, delay float64) Step { return Step{Direction: ServerToClient, Command: cmd, Delay: delay} }

var builtins = []Scenario{
	{
		Name:        "basic_commands",
		Description: "Frequency and mode queries with their responses, then a VFO B set",
		Steps: []Step{
			client("FA;", 0.001),
			radio("FA00014074000;", 0.01),
			client("MD;", 0.001),
			radio("MD3;", 0.01),
			client("FB$00007200000;", 0.001),
		},
	},
	{
		Name:        "if_status",
		Description: "IF status responses: RX LSB, TX USB with RIT +150 Hz, DATA sub-mode",
		Steps: []Step{
			client("IF;", 0.002),
			radio("IF00014074000     +000000 0001001001 ;", 0.5),
			client("IF;", 0.002),
			radio("IF00014074000     +015010 0102001001 ;", 0.5),
			client("IF;", 0.002),
			radio("IF00021074000     +000000 0006001001 ;", 0),
		},
	},
	{
		Name:        "panadapter_commands",
		Description: "Panadapter (#) commands: span, reference level, auto-ref, VFO cursor, waterfall",
		Steps: []Step{
			client("#SPN$46125;", 0.01),
			client("#REF$-20;", 0.01),
			client("#AR1506+001;", 0.01),
			client("#VFA2;", 0.01),
			client("#WFC$1;", 0),
		},
	},
	{
		Name:        "mixed_session",
		Description: "A realistic session: status, tuning, RIT, gains, transmit and back to receive",
		Steps: []Step{
			client("IF;OM;", 0.002),
			radio("IF00014074000     +000000 0001001001 ;OM AP-S----4--;", 0.1),
			client("FA00007074000;MD2;", 0.01),
			client("RT$1;RO$+00150;", 0.01),
			client("AG050;RG200;", 0.01),
			client("TX;", 0.5),
			client("IF;", 0.002),
			radio("IF00007074000     +015010 0102001001 ;", 0.1),
			client("RX;", 0),
		},
	},
	{
		Name:        "om_hardware",
		Description: "OM option responses for K4, K4D and K4HD hardware",
		Steps: []Step{
			client("OM;", 0.002),
			radio("OM AP-S----4--;", 0.5),
			client("OM;", 0.002),
			radio("OM AP-SH---4D-;", 0.5),
			client("OM;", 0.002),
			radio("OM AP-SH---4DH;", 0),
		},
	},
}

// Builtins returns copies of the built-in scenarios in their canonical order.
func Builtins() []Scenario {
	out := make([]Scenario, len(builtins))
	for i, sc := range builtins {
		sc.Steps = append([]Step(nil), sc.Steps...)
		out[i] = sc
	}
	return out
}

// Catalog is a set of scenarios addressable by name.
type Catalog struct {
	order  []string
	byName map[string]Scenario
}

// NewCatalog returns a catalog holding the built-in scenarios.
func NewCatalog() *Catalog {
	cat := &Catalog{byName: make(map[string]Scenario)}
	for _, sc := range Builtins() {
		cat.order = append(cat.order, sc.Name)
		cat.byName[sc.Name] = sc
	}
	return cat
}

// Add validates and registers scenarios. A scenario with the name of an
// existing one replaces it in place.
func (c *Catalog) Add(scs ...Scenario) error {
	for _, sc := range scs {
		if err := sc.Validate(); err != nil {
			return err
		}
		if _, ok := c.byName[sc.Name]; !ok {
			c.order = append(c.order, sc.Name)
		}
		c.byName[sc.Name] = sc
	}
	return nil
}

// Get looks a scenario up by name.
func (c *Catalog) Get(name string) (Scenario, error) {
	sc, ok := c.byName[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return sc, nil
}

// All returns every scenario in registration order.
func (c *Catalog) All() []Scenario {
	out := make([]Scenario, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// Select returns the named scenarios, or all of them when names is empty.
// Repeated names are selected once. Unknown names are reported together,
// sorted.
func (c *Catalog) Select(names ...string) ([]Scenario, error) {
	if len(names) == 0 {
		return c.All(), nil
	}
	var (
		out     []Scenario
		missing []string
		picked  = make(map[string]bool, len(names))
	)
	for _, name := range names {
		if picked[name] {
			continue
		}
		picked[name] = true
		sc, ok := c.byName[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out = append(out, sc)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, missing)
	}
	return out, nil
}
