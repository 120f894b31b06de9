package handlers

// GameDomain maps frontend game IDs to Nexus Mods domain names.
//
// Only Bethesda-plugin-family games are listed here: the plugin header
// parser and load-order analyzer are built against the TES4 record format,
// which these games share and other games do not.
type GameDomain struct {
	ID         string // Frontend ID (skyrim, skyrimvr, fallout4, ...)
	DomainName string // Nexus domain (skyrimspecialedition, skyrimspecialeditionvr, ...)
	Label      string // Display name
}

// GameDomains is a map of game IDs to their Nexus domain info.
var GameDomains = map[string]GameDomain{
	"skyrim": {
		ID:         "skyrim",
		DomainName: "skyrimspecialedition",
		Label:      "Skyrim Special Edition",
	},
	"skyrimvr": {
		ID:         "skyrimvr",
		DomainName: "skyrimspecialeditionvr",
		Label:      "Skyrim VR",
	},
	"fallout4": {
		ID:         "fallout4",
		DomainName: "fallout4",
		Label:      "Fallout 4",
	},
	"falloutnv": {
		ID:         "falloutnv",
		DomainName: "newvegas",
		Label:      "Fallout: New Vegas",
	},
	"oblivion": {
		ID:         "oblivion",
		DomainName: "oblivion",
		Label:      "Oblivion",
	},
	"morrowind": {
		ID:         "morrowind",
		DomainName: "morrowind",
		Label:      "Morrowind",
	},
}

// GetNexusDomain returns the Nexus domain name for a given game ID.
// Falls back to the input if not found (for backwards compatibility).
func GetNexusDomain(gameID string) string {
	if domain, ok := GameDomains[gameID]; ok {
		return domain.DomainName
	}
	// Return input as-is (might already be a domain name)
	return gameID
}

// IsValidGameID returns true if the given game ID is supported.
func IsValidGameID(gameID string) bool {
	_, ok := GameDomains[gameID]
	return ok
}
