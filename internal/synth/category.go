package synth

import "strings"

// DefaultCategory is assigned when no keyword set matches the topic.
const DefaultCategory = "IAB24 (Uncategorized)"

// categories is the fixed, ordered keyword taxonomy. The first set with a
// keyword found in the topic wins.
var categories = []struct {
	tag      string
	keywords []string
}{
	{"IAB8-18 (Food & Drink)", []string{"bbq", "steak", "meat", "grocery", "groceries", "dinner", "recipe", "restaurant", "wine", "coffee"}},
	{"IAB1-7 (Apparel)", []string{"shoes", "sneakers", "jacket", "clothes", "clothing", "apparel", "dress"}},
	{"IAB19 (Technology & Computing)", []string{"laptop", "phone", "computer", "software", "gadget", "headphones"}},
	{"IAB11 (Home & Garden)", []string{"furniture", "sofa", "mattress", "garden", "kitchen", "appliance"}},
	{"IAB20 (Travel)", []string{"trip", "flight", "hotel", "travel", "vacation", "ski", "resort"}},
	{"IAB7 (Health, Fitness & Nutrition)", []string{"gym", "fitness", "workout", "protein", "vitamins"}},
	{"IAB13 (Personal Finance & Insurance)", []string{"insurance", "loan", "mortgage", "invest"}},
	{"IAB1 (Arts & Entertainment)", []string{"concert", "movie", "tickets", "show"}},
	{"IAB9 (Hobbies & Interests)", []string{"hobby", "game", "craft", "guitar", "camera"}},
}

// Categorize maps a topic description to the closest standard IAB category
// tag by keyword match.
func Categorize(topic string) string {
	lower := strings.ToLower(topic)
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.tag
			}
		}
	}
	return DefaultCategory
}
