package terms

// ChainNames is the lowercase national-chain substring list used by the chain
// filter and independence scoring.
func ChainNames() []string {
	return []string{
		"mcdonald", "burger king", "wendy", "taco bell", "subway", "chick-fil-a",
		"sonic drive-in", "kfc", "popeyes", "domino", "pizza hut", "papa john",
		"little caesars", "starbucks", "dunkin", "arby", "jack in the box",
		"whataburger", "chipotle", "panera", "olive garden", "applebee",
		"chili's", "ihop", "denny", "panda express", "dairy queen", "five guys",
		"raising cane", "wingstop", "jimmy john", "jersey mike", "buffalo wild wings",
		"red lobster", "outback steakhouse", "texas roadhouse", "cracker barrel",
	}
}
