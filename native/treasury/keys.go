package treasury

var (
	collateralIndexKey = []byte("treasury/collateral/index")
	roleStateKey       = []byte("treasury/roles")
)
