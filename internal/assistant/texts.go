package assistant

// Texts are the fixed messages the session shows.
type Texts struct {
	Greeting    string
	Placeholder string
	Failure     string
	NoAnswer    string
}

var texts = map[string]Texts{
	"mr": {
		Greeting:    "नमस्कार 🙏 मी तुमचा कृषी AI सहाय्यक आहे. रोग/फवारणी विषयी प्रश्न विचारा.",
		Placeholder: "⏳ उत्तर तयार होत आहे...",
		Failure:     "❌ AI error. पुन्हा प्रयत्न करा.",
		NoAnswer:    "⚠️ उत्तर मिळाले नाही.",
	},
	"hi": {
		Greeting:    "नमस्ते 🙏 मैं आपका कृषि AI सहायक हूँ. रोग/छिड़काव के बारे में सवाल पूछें.",
		Placeholder: "⏳ जवाब तैयार हो रहा है...",
		Failure:     "❌ AI error. फिर से कोशिश करें.",
		NoAnswer:    "⚠️ जवाब नहीं मिला.",
	},
	"en": {
		Greeting:    "Hello 🙏 I am your farming AI assistant. Ask about diseases or spraying.",
		Placeholder: "⏳ Preparing an answer...",
		Failure:     "❌ AI error. Please try again.",
		NoAnswer:    "⚠️ No answer received.",
	},
}

var suggestions = map[string][]string{
	"mr": {
		"यावर कोणती फवारणी करावी?",
		"सेंद्रिय उपाय कोणते?",
		"रासायनिक औषध + डोस किती?",
		"फवारणी किती दिवसांनी करावी?",
		"सेफ्टी/काळजी काय घ्यावी?",
	},
	"hi": {
		"इस पर कौन सा छिड़काव करें?",
		"जैविक उपाय क्या हैं?",
		"रासायनिक दवा + खुराक कितनी?",
		"छिड़काव कितने दिन बाद करें?",
		"सुरक्षा/सावधानी क्या रखें?",
	},
	"en": {
		"Which spray should I use for this?",
		"What are the organic remedies?",
		"Which chemical and what dose?",
		"How many days between sprays?",
		"What safety precautions should I take?",
	},
}

// TextsFor returns the messages for lang, falling back to Marathi.
func TextsFor(lang string) Texts {
	if t, ok := texts[lang]; ok {
		return t
	}
	return texts["mr"]
}

// Suggestions returns the canned questions for lang, falling back to
// Marathi.
func Suggestions(lang string) []string {
	s, ok := suggestions[lang]
	if !ok {
		s = suggestions["mr"]
	}
	return append([]string(nil), s...)
}
