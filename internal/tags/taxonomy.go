package tags

// The default taxonomies were curated against a corpus of cooperative
// development interviews. Config may override any of them; the keyword
// lists are values, never mutated after construction.

// DefaultResearchCategories returns the research-theme taxonomy.
func DefaultResearchCategories() map[string][]string {
	return map[string][]string{
		"Membership": {
			"member", "membership", "members", "constituent", "constituents",
			"participant", "participants", "landowner", "landowners",
			"member base", "member bases", "member-driven", "member-owned",
			"member-run", "member-led",
		},
		"Governance": {
			"board", "director", "directors", "leadership", "governance",
			"bylaw", "bylaws", "steering committee", "committee", "elected",
			"election", "board member", "board members", "board meeting",
			"board meetings", "governance structure", "governance structures",
			"democratic", "democratically", "governing",
		},
		"Finance": {
			"revenue", "revenues", "budget", "budgets", "financial", "grant",
			"grants", "funding", "loan", "loans", "credit", "dollar",
			"dollars", "money", "fund", "funds", "investment", "investments",
			"financially", "financial planning", "financial management",
			"capital", "financing", "financed", "monetary",
		},
		"Employment": {
			"employee", "employees", "staff", "worker", "workers", "job",
			"jobs", "contractor", "contractors", "consultant", "consultants",
			"advisor", "advisors", "hire", "hiring", "workforce",
			"employment", "employ", "employing", "hired", "staffing",
			"personnel",
		},
		"Partnerships": {
			"partner", "partners", "partnership", "partnerships",
			"collaboration", "collaborations", "alliance", "alliances",
			"network", "networks", "support organization",
			"support organizations", "collaborate", "collaborating",
			"partnered", "allied",
		},
		"Innovation": {
			"innovation", "innovations", "new practice", "new practices",
			"new model", "new models", "new product", "new products",
			"development", "developments", "pilot", "pilots", "innovative",
			"innovate", "innovating", "pioneer", "pioneering", "breakthrough",
		},
		"Operations": {
			"operation", "operations", "supply chain", "supply chains",
			"processing", "warehouse", "warehouses", "equipment",
			"production", "produce", "producing", "farm", "farming", "field",
			"fields", "operational", "operate", "operating", "day-to-day",
			"daily operations",
		},
		"Markets": {
			"market", "markets", "sales", "customer", "customers",
			"revenue stream", "revenue streams", "distribution", "retail",
			"sell", "selling", "sold", "marketing", "marketplace",
			"marketplaces", "commercial", "commercially", "market-driven",
		},
		"Technology": {
			"digital", "website", "websites", "social media", "facebook",
			"online", "technology", "technologies", "software", "app",
			"apps", "internet", "email", "technological", "digitally",
			"web-based", "e-commerce", "ecommerce", "digital tools",
		},
		"Culture": {
			"traditional", "tradition", "traditions", "tribal value",
			"tribal values", "cultural", "culture", "indigenous", "heritage",
			"elder", "elders", "ceremony", "ceremonies", "custom", "customs",
			"culturally", "traditional knowledge", "cultural practices",
			"tribal culture", "cultural preservation",
		},
		"Geography": {
			"location", "locations", "reservation", "reservations",
			"tribal land", "tribal lands", "community", "communities",
			"region", "regions", "nation", "nations", "pueblo", "pueblos",
			"district", "districts", "geographic", "geographically", "local",
			"locally", "regional", "regionally",
		},
		"Risk": {
			"challenge", "challenges", "obstacle", "obstacles", "risk",
			"risks", "barrier", "barriers", "issue", "issues", "problem",
			"problems", "adaptation", "adaptations", "difficulty",
			"difficulties", "challenging", "risky", "problematic",
			"hurdle", "hurdles",
		},
		"Timeline": {
			"founded", "establish", "established", "year", "years", "since",
			"started", "start", "began", "begin", "created", "create",
			"formation", "formed", "incorporated", "incorporation",
			"founding", "establishment", "inception", "origins", "origin",
		},
		"Success": {
			"success", "successful", "growth", "grow", "growing", "profit",
			"profits", "profitable", "sustainable", "sustainability",
			"impact", "impacts", "benefit", "benefits", "achievement",
			"achievements", "thrive", "thriving", "prosper", "prospering",
			"flourish", "flourishing", "succeed", "succeeding", "accomplish",
			"accomplished",
		},
		"COVID": {
			"covid", "covid-19", "pandemic", "coronavirus", "lockdown",
			"lockdowns", "quarantine", "quarantines", "remote work",
			"virtual", "zoom", "online meeting", "online meetings",
			"pandemic-related", "covid-related", "pandemic impact",
			"covid impact",
		},
	}
}

// DefaultSurveyQuestions returns the survey-question alignment taxonomy.
func DefaultSurveyQuestions() map[string][]string {
	return map[string][]string{
		"Q1_TribalValues": {
			"tribal value", "tribal values", "traditional system",
			"traditional systems", "cultural", "culture", "indigenous value",
			"indigenous values", "heritage", "tradition", "traditions",
			"custom", "customs", "tribal culture", "cultural values",
			"traditional knowledge", "cultural practices", "tribal traditions",
			"indigenous culture",
		},
		"Q2_MarketingPlan": {
			"marketing plan", "marketing plans", "business plan",
			"business plans", "marketing strategy", "marketing strategies",
			"sales plan", "sales plans", "strategy", "strategies",
			"strategic plan", "strategic planning", "marketing approach",
			"business strategy", "sales strategy",
		},
		"Q3_WebsiteSocial": {
			"website", "websites", "social media", "facebook", "instagram",
			"online", "digital marketing", "internet", "web", "social",
			"digital", "web presence", "online presence", "social networking",
			"digital platform", "online platform", "web platform",
		},
		"Q4_OutsideAssistance": {
			"consultant", "consultants", "developer", "developers",
			"assistance", "help", "support organization",
			"support organizations", "partner", "partners", "collaboration",
			"collaborations", "external", "outside", "external support",
			"outside help", "technical assistance", "outside consultant",
			"external consultant",
		},
		"Q5_StandardApproaches": {
			"cooperative model", "cooperative models", "coop development",
			"standard", "standards", "best practice", "best practices",
			"bylaw", "bylaws", "model", "models", "approach", "approaches",
			"standard model", "standard approach", "cooperative standard",
			"industry standard", "established model",
		},
		"Q6_CommunityDifferences": {
			"challenge", "challenges", "difficult", "difficulty",
			"difficulties", "conflict", "conflicts", "issue", "issues",
			"problem", "problems", "disagree", "disagreement", "barrier",
			"barriers", "tension", "tensions", "disagreements",
			"community conflict",
		},
		"Q7_LeadershipEngagement": {
			"tribal leader", "tribal leaders", "council", "councils",
			"chief", "chiefs", "board", "boards", "engage", "engagement",
			"communicate", "communication", "meeting", "meetings", "discuss",
			"discussion", "tribal council", "tribal councils",
			"leadership engagement", "community engagement",
			"stakeholder engagement",
		},
		"Q8_Success": {
			"success", "successful", "grow", "growth", "growing", "profit",
			"profits", "profitable", "achieve", "achievement",
			"achievements", "accomplish", "accomplishment", "positive",
			"benefit", "benefits", "impact", "impacts", "thrive", "thriving",
			"prosper", "prospering", "flourish", "flourishing", "succeed",
			"succeeding",
		},
		"Q9_COVID": {
			"covid", "covid-19", "pandemic", "coronavirus", "lockdown",
			"lockdowns", "quarantine", "quarantines", "remote work",
			"virtual", "zoom", "online meeting", "online meetings",
			"pandemic-related", "covid-related", "pandemic impact",
			"covid impact",
		},
	}
}

// DefaultIndigenousTerms returns terminology tagged independently of the
// two taxonomies.
func DefaultIndigenousTerms() []string {
	return []string{
		"sovereignty", "tribal sovereignty", "self-determination",
		"matriarch", "elder", "ceremony", "traditional knowledge",
		"land-based", "water rights", "treaty", "reservation", "pueblo",
		"nation", "tribal council", "indigenous", "native", "first nation",
		"aboriginal",
	}
}
