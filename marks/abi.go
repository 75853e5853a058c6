package marks

const (
	MethodInitializeCombiningMarks     = "initializeCombiningMarks"
	MethodInitializeCombiningMarksSalt = "initializeCombiningMarksSalt"
	MethodStripDiacritics              = "stripDiacritics"
)

// DefaultABI describes the combining-marks contract. It is used when no ABI
// file is configured.
const DefaultABI = `[
	{
		"inputs": [
			{"internalType": "uint16[]", "name": "keys", "type": "uint16[]"},
			{"internalType": "uint16[]", "name": "values", "type": "uint16[]"}
		],
		"name": "initializeCombiningMarks",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256[]", "name": "salts", "type": "uint256[]"}
		],
		"name": "initializeCombiningMarksSalt",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "string", "name": "inputStr", "type": "string"}
		],
		"name": "stripDiacritics",
		"outputs": [
			{"internalType": "string", "name": "", "type": "string"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`
