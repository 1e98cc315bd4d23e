package contract

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const nftTupleComponents = `[
	{"name":"collection","type":"address"},
	{"name":"tokenId","type":"uint256"},
	{"name":"amount","type":"uint256"}
]`

// EscrowABIJSON is the NFT swap escrow surface.
const EscrowABIJSON = `[
	{"type":"function","name":"createOffer","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"taker","type":"address"},
		{"name":"offered","type":"tuple[]","components":` + nftTupleComponents + `},
		{"name":"desired","type":"tuple","components":` + nftTupleComponents + `},
		{"name":"deadline","type":"uint256"}],
	 "outputs":[{"name":"offerId","type":"uint256"}]},
	{"type":"function","name":"acceptOffer","stateMutability":"nonpayable",
	 "inputs":[{"name":"offerId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"cancelOffer","stateMutability":"nonpayable",
	 "inputs":[{"name":"offerId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"expireOffer","stateMutability":"nonpayable",
	 "inputs":[{"name":"offerId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getOffer","stateMutability":"view",
	 "inputs":[{"name":"offerId","type":"uint256"}],
	 "outputs":[{"name":"","type":"tuple","components":[
		{"name":"maker","type":"address"},
		{"name":"taker","type":"address"},
		{"name":"offered","type":"tuple[]","components":` + nftTupleComponents + `},
		{"name":"desired","type":"tuple","components":` + nftTupleComponents + `},
		{"name":"deadline","type":"uint256"},
		{"name":"status","type":"uint8"}]}]},
	{"type":"function","name":"getOfferNFTs","stateMutability":"view",
	 "inputs":[{"name":"offerId","type":"uint256"}],
	 "outputs":[{"name":"","type":"tuple[]","components":` + nftTupleComponents + `}]},
	{"type":"function","name":"nextOfferId","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"OfferCreated","anonymous":false,"inputs":[
		{"indexed":true,"name":"offerId","type":"uint256"},
		{"indexed":true,"name":"maker","type":"address"},
		{"indexed":true,"name":"taker","type":"address"},
		{"indexed":false,"name":"deadline","type":"uint256"}]},
	{"type":"event","name":"OfferAccepted","anonymous":false,"inputs":[
		{"indexed":true,"name":"offerId","type":"uint256"},
		{"indexed":true,"name":"taker","type":"address"}]},
	{"type":"event","name":"OfferCancelled","anonymous":false,"inputs":[
		{"indexed":true,"name":"offerId","type":"uint256"}]},
	{"type":"event","name":"OfferExpired","anonymous":false,"inputs":[
		{"indexed":true,"name":"offerId","type":"uint256"}]}
]`

const ERC721ABIJSON = `[
	{"type":"function","name":"isApprovedForAll","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"operator","type":"address"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"setApprovalForAll","stateMutability":"nonpayable",
	 "inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]},
	{"type":"function","name":"safeTransferFrom","stateMutability":"nonpayable",
	 "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],
	 "outputs":[]}
]`

const ERC20ABIJSON = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"decimals","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

// BoosterDropABIJSON is the Vibe.Market BoosterDrop surface.
const BoosterDropABIJSON = `[
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":true,"name":"tokenId","type":"uint256"}]},
	{"type":"function","name":"getTokenRarity","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[
		{"name":"rarity","type":"uint8"},
		{"name":"randomValue","type":"uint256"},
		{"name":"tokenSpecificRandomness","type":"bytes32"}]},
	{"type":"function","name":"getMintPrice","stateMutability":"view",
	 "inputs":[{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"mint","stateMutability":"payable",
	 "inputs":[
		{"name":"amount","type":"uint256"},
		{"name":"recipient","type":"address"},
		{"name":"referrer","type":"address"},
		{"name":"originReferrer","type":"address"}],
	 "outputs":[]},
	{"type":"function","name":"getEntropyFee","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"open","stateMutability":"payable",
	 "inputs":[{"name":"tokenIds","type":"uint256[]"}],"outputs":[]},
	{"type":"function","name":"ownerOf","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"tokenURI","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"tokenOfOwnerByIndex","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

var (
	EscrowABI      = mustParseABI(EscrowABIJSON)
	ERC721ABI      = mustParseABI(ERC721ABIJSON)
	ERC20ABI       = mustParseABI(ERC20ABIJSON)
	BoosterDropABI = mustParseABI(BoosterDropABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("contract: invalid ABI: " + err.Error())
	}
	return parsed
}
