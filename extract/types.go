package extract

// OrgUnit is an organisation unit as returned by /api/organisationUnits.
// Path lists the ancestor ids from the root, e.g. "/ImspTQPwCqd/O6uvpzGd5pu".
type OrgUnit struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Level int    `json:"level"`
	Path  string `json:"path"`
}

// NamedItem covers metadata objects for which only id and name are needed,
// such as data elements and category option combos.
type NamedItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type DataValue struct {
	DataElement         string `json:"dataElement"`
	Period              string `json:"period"`
	OrgUnit             string `json:"orgUnit"`
	CategoryOptionCombo string `json:"categoryOptionCombo"`
	Value               string `json:"value"`
}

type orgUnitsResponse struct {
	OrganisationUnits []OrgUnit `json:"organisationUnits"`
}

type dataElementsResponse struct {
	DataElements []NamedItem `json:"dataElements"`
}

type categoryOptionCombosResponse struct {
	CategoryOptionCombos []NamedItem `json:"categoryOptionCombos"`
}

type dataValueSetResponse struct {
	DataValues []DataValue `json:"dataValues"`
}
