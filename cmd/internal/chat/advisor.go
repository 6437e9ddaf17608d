package chat

import "strings"

// Advisor produces a canned advisory reply for a farmer's message.
type Advisor struct {
	rules []rule
}

type rule struct {
	keywords []string
	advice   string
}

// NewAdvisor constructs the default rule table. Rules are checked in order;
// the first rule with any keyword present wins.
func NewAdvisor() *Advisor {
	return &Advisor{rules: []rule{
		{
			keywords: []string{"blight", "fungus", "spots", "mildew"},
			advice: "Leaf spots after rain usually point to a fungal infection. " +
				"Remove affected leaves, improve air flow between plants, and apply a " +
				"copper-based fungicide in the evening. Avoid overhead watering.",
		},
		{
			keywords: []string{"aphid", "borer", "caterpillar", "pest", "insect"},
			advice: "For early pest pressure, start with neem oil spray and pheromone " +
				"traps before chemical insecticides. Check the undersides of leaves " +
				"every two to three days.",
		},
		{
			keywords: []string{"yellow", "yellowing", "nitrogen", "pale"},
			advice: "Uniform yellowing of older leaves often means nitrogen deficiency. " +
				"Top-dress with urea or apply well-rotted compost, and confirm the soil " +
				"is not waterlogged.",
		},
		{
			keywords: []string{"irrigation", "water", "drip", "drought"},
			advice: "Water deeply and less often rather than a little every day. Drip " +
				"lines with mulch cut evaporation sharply; early morning is the best " +
				"time to irrigate.",
		},
		{
			keywords: []string{"price", "mandi", "sell", "market"},
			advice: "Check the mandi prices screen for today's modal price in nearby " +
				"markets before selling. Prices usually peak mid-week when arrivals drop.",
		},
		{
			keywords: []string{"wheat", "sowing", "sow", "seed"},
			advice: "Sow wheat once daytime temperatures stay below 25°C; in most " +
				"northern plains that is early-to-mid November. Use certified seed and " +
				"treat it against seed-borne disease before sowing.",
		},
		{
			keywords: []string{"soil", "ph", "fertility", "compost"},
			advice: "Get a soil test before the season. Most field crops prefer a pH " +
				"between 6 and 7.5; adding compost improves both drainage and water " +
				"holding in almost any soil.",
		},
	}}
}

const fallbackAdvice = "I can help with crop diseases, pests, irrigation, " +
	"sowing windows, soil health, and mandi prices. Tell me your crop and what " +
	"you are seeing in the field."

// Advise returns advice for the message, or a capability hint when no rule
// matches.
func (a *Advisor) Advise(message string) string {
	if a == nil {
		return fallbackAdvice
	}
	msg := strings.ToLower(message)
	for _, r := range a.rules {
		for _, kw := range r.keywords {
			if strings.Contains(msg, kw) {
				return r.advice
			}
		}
	}
	return fallbackAdvice
}
