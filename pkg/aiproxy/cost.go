package aiproxy

// Per-token prices. These are estimates for reporting, not billing figures.

type tokenPrice struct {
	input  float64
	output float64
}

var openAIPrices = map[string]float64{
	"gpt-4":         0.03 / 1000,
	"gpt-4-turbo":   0.01 / 1000,
	"gpt-3.5-turbo": 0.002 / 1000,
}

var anthropicPrices = map[string]tokenPrice{
	"claude-3-sonnet-20240229": {input: 0.003 / 1000, output: 0.015 / 1000},
	"claude-3-haiku-20240307":  {input: 0.00025 / 1000, output: 0.00125 / 1000},
}

var googlePrices = map[string]float64{
	"gemini-pro":        0.0005 / 1000,
	"gemini-pro-vision": 0.0025 / 1000,
}

// EstimateOpenAICost prices total tokens at the model's flat rate, falling
// back to the gpt-3.5-turbo rate for unknown models.
func EstimateOpenAICost(tokens int, model string) float64 {
	price, ok := openAIPrices[model]
	if !ok {
		price = openAIPrices["gpt-3.5-turbo"]
	}

	return float64(tokens) * price
}

// EstimateAnthropicCost prices input and output tokens separately, falling
// back to the haiku rates for unknown models.
func EstimateAnthropicCost(inputTokens, outputTokens int, model string) float64 {
	price, ok := anthropicPrices[model]
	if !ok {
		price = anthropicPrices["claude-3-haiku-20240307"]
	}

	return float64(inputTokens)*price.input + float64(outputTokens)*price.output
}

// EstimateGoogleCost prices total tokens at the model's flat rate, falling
// back to the gemini-pro rate for unknown models.
func EstimateGoogleCost(tokens int, model string) float64 {
	price, ok := googlePrices[model]
	if !ok {
		price = googlePrices["gemini-pro"]
	}

	return float64(tokens) * price
}
