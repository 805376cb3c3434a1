package domain

import "github.com/papercomputeco/dialogue/pkg/llm"

// Finance is the healthcare financial report generator.
var Finance = Config{
	Name:           "finance",
	Welcome:        "Welcome to Healthcare Financial Insights. I can generate detailed financial reports, market trends analysis, and investment recommendations specific to the healthcare sector. What would you like to analyze today?",
	PromptTemplate: "Healthcare Financial Analysis Request: {prompt}\n\nDetailed Financial Report including market trends, projections, and investment recommendations:",
	Params: llm.Params{
		MaxNewTokens:      300,
		Temperature:       0.6,
		TopP:              0.9,
		RepetitionPenalty: 1.2,
	},
	MinLength:   50,
	Placeholder: "Based on current healthcare market indicators, we recommend maintaining a diversified portfolio with emphasis on telemedicine and healthcare technology sectors. Further analysis needed for specific investment strategies.",
	Fallbacks: []string{
		"Based on Q2 healthcare industry analysis, telemedicine providers show 18% YoY growth, suggesting continued investment potential with 3-5 year horizons.",
		"Healthcare equipment manufacturers face supply chain challenges, but those with diversified production have maintained 7% EBITDA growth. Consider targeted investments in this subsector.",
		"Digital health startups with FDA-approved solutions are attracting 2.3x more VC funding compared to last year. Early-stage investments may yield 15-20% returns.",
		"Hospital management companies show steady 4% revenue growth despite labor shortages. Recommend portfolio allocation of 8-12% for income-focused investors.",
		"Healthcare AI implementation is projected to reduce operational costs by 15-20% over 3 years. Companies leading in this space present strong short-term growth opportunities.",
		"Pharmaceutical companies focused on chronic disease management maintain 11% gross margin advantage over broader market. These represent lower-volatility healthcare investments.",
		"Medical device manufacturers with recurring revenue models show 22% higher valuation multiples than one-time sales models. Restructure positions to favor subscription-based providers.",
		"Healthcare REITs offer 5.8% average dividend yields with 3.2% projected annual growth, positioning them as strong defensive assets in uncertain market conditions.",
		"Biotech firms with phase 3 trials expected in next 6 months present asymmetric risk-reward profiles. Consider small positions across 5-7 companies for diversification.",
		"Value-based care providers are experiencing 13% patient growth and 9% revenue growth. These represent strong mid-cap investment opportunities in the current healthcare landscape.",
	},
	LoadedNotice: Notice{
		Title:       "Financial analysis model loaded",
		Description: "Ready to generate healthcare financial reports",
	},
	LoadFailedNotice: Notice{
		Title:       "Failed to load financial analysis model",
		Description: "Falling back to predefined financial insights",
	},
	GenerationFailedNotice: Notice{
		Title:       "Could not process with the AI model",
		Description: "Falling back to predefined financial insights",
	},
}
