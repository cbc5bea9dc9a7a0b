package epicgame

// TokenABI is the subset of the EPIC ERC-20 token ABI used by the game client.
const TokenABI = `[
	{
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount",  "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "to",     "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "faucet",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const characterTuple = `{
	"components": [
		{"name": "characterIndex", "type": "uint256"},
		{"name": "name",           "type": "string"},
		{"name": "imageURI",       "type": "string"},
		{"name": "hp",             "type": "uint256"},
		{"name": "maxHp",          "type": "uint256"},
		{"name": "attacks",        "type": "uint256[]"},
		{"name": "specialAttacks", "type": "uint256[]"},
		{"name": "lastRegenTime",  "type": "uint256"},
		{"name": "tokenId",        "type": "uint256"}
	],
	"name": "",`

const bossTuple = `{
	"components": [
		{"name": "name",         "type": "string"},
		{"name": "imageURI",     "type": "string"},
		{"name": "hp",           "type": "uint256"},
		{"name": "maxHp",        "type": "uint256"},
		{"name": "attackDamage", "type": "uint256"}
	],
	"name": "",`

const attackTuple = `{
	"components": [
		{"name": "attackIndex",  "type": "uint256"},
		{"name": "attackName",   "type": "string"},
		{"name": "attackDamage", "type": "uint256"},
		{"name": "attackImage",  "type": "string"}
	],
	"name": "",`

const specialAttackTuple = `{
	"components": [
		{"name": "price",               "type": "uint256"},
		{"name": "specialAttackIndex",  "type": "uint256"},
		{"name": "specialAttackName",   "type": "string"},
		{"name": "specialAttackDamage", "type": "uint256"},
		{"name": "specialAttackImage",  "type": "string"}
	],
	"name": "",`

// GameABI is the subset of the NFT game contract ABI used by the game client.
const GameABI = `[
	{
		"inputs": [],
		"name": "checkIfUserHasNFT",
		"outputs": [` + characterTuple + ` "type": "tuple"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getAllDefaultCharacters",
		"outputs": [` + characterTuple + ` "type": "tuple[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getBigBoss",
		"outputs": [` + bossTuple + ` "type": "tuple"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getAllAttacks",
		"outputs": [` + attackTuple + ` "type": "tuple[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getAllSpecialAttacks",
		"outputs": [` + specialAttackTuple + ` "type": "tuple[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "_characterIndex", "type": "uint256"}],
		"name": "mintCharacterNFT",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "attackIndex", "type": "uint256"}],
		"name": "attackBoss",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "specialAttackIndex", "type": "uint256"}],
		"name": "attackSpecialBoss",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "claimHealth",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "specialAttackIndex", "type": "uint256"}],
		"name": "buySpecialAttack",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`
