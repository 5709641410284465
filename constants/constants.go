package constants

const (
	TmpCSVFile     = "dhis2_staging_*.csv"
	AnalyticsFile  = "analytics.csv"
	DEMappingIDCol = "DE ID"
	DEMappingFreq  = "Freq"
)
