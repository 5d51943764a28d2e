package registry

// DataProviderABI covers the read-only listing functions of the rollup DataProvider contract.
const DataProviderABI = `[
	{"name":"getBridges","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"bridgeAddress","type":"address"},{"name":"bridgeAddressId","type":"uint256"},{"name":"label","type":"string"}]}]},
	{"name":"getAssets","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"assetAddress","type":"address"},{"name":"assetId","type":"uint256"},{"name":"label","type":"string"}]}]}
]`
