package resources

// Record types mirror the backend's serialized field names. Pointer fields
// distinguish "not set" from zero values in PATCH bodies.

type Product struct {
	ID                           int64  `json:"id,omitempty"`
	Name                         string `json:"name"`
	Description                  string `json:"description,omitempty"`
	PURL                         string `json:"purl,omitempty"`
	RepositoryDefaultBranch      int64  `json:"repository_default_branch,omitempty"`
	SecurityGateActive           *bool  `json:"security_gate_active,omitempty"`
	SecurityGatePassed           *bool  `json:"security_gate_passed,omitempty"`
	OpenCriticalObservationCount int    `json:"open_critical_observation_count,omitempty"`
	OpenHighObservationCount     int    `json:"open_high_observation_count,omitempty"`
	OpenMediumObservationCount   int    `json:"open_medium_observation_count,omitempty"`
	OpenLowObservationCount      int    `json:"open_low_observation_count,omitempty"`
}

type Observation struct {
	ID                         int64  `json:"id,omitempty"`
	Product                    int64  `json:"product"`
	Branch                     int64  `json:"branch,omitempty"`
	Title                      string `json:"title"`
	Description                string `json:"description,omitempty"`
	CurrentSeverity            string `json:"current_severity,omitempty"`
	CurrentStatus              string `json:"current_status,omitempty"`
	ParserSeverity             string `json:"parser_severity,omitempty"`
	VulnerabilityID            string `json:"vulnerability_id,omitempty"`
	OriginService              string `json:"origin_service_name,omitempty"`
	OriginComponentNameVersion string `json:"origin_component_name_version,omitempty"`
	Scanner                    string `json:"scanner,omitempty"`
	FoundDate                  string `json:"found_date,omitempty"`
}

// ObservationAssessment is the reviewer's override of severity/status.
type ObservationAssessment struct {
	Severity string `json:"assessment_severity,omitempty"`
	Status   string `json:"assessment_status,omitempty"`
	Comment  string `json:"comment"`
}

type Branch struct {
	ID            int64  `json:"id,omitempty"`
	Product       int64  `json:"product"`
	Name          string `json:"name"`
	LastImport    string `json:"last_import,omitempty"`
	PURL          string `json:"purl,omitempty"`
	OpenCritical  int    `json:"open_critical_observation_count,omitempty"`
	OpenHigh      int    `json:"open_high_observation_count,omitempty"`
	ProtectedFlag *bool  `json:"housekeeping_protect,omitempty"`
}

type LicensePolicy struct {
	ID                   int64  `json:"id,omitempty"`
	Name                 string `json:"name"`
	Description          string `json:"description,omitempty"`
	IsPublic             bool   `json:"is_public,omitempty"`
	IgnoreComponentTypes string `json:"ignore_component_types,omitempty"`
	Parent               int64  `json:"parent,omitempty"`
}

type User struct {
	ID              int64  `json:"id,omitempty"`
	Username        string `json:"username"`
	FullName        string `json:"full_name,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Email           string `json:"email,omitempty"`
	IsActive        *bool  `json:"is_active,omitempty"`
	IsExternal      *bool  `json:"is_external,omitempty"`
	IsSuperuser     *bool  `json:"is_superuser,omitempty"`
	SettingListSize int    `json:"setting_list_size,omitempty"`
	SettingTheme    string `json:"setting_theme,omitempty"`
}

type AuthorizationGroup struct {
	ID        int64   `json:"id,omitempty"`
	Name      string  `json:"name"`
	OIDCGroup string  `json:"oidc_group,omitempty"`
	Users     []int64 `json:"users,omitempty"`
}

type VEXDocument struct {
	ID                 int64    `json:"id,omitempty"`
	Product            int64    `json:"product,omitempty"`
	Format             string   `json:"format,omitempty"` // "csaf" or "openvex"
	DocumentIDPrefix   string   `json:"document_id_prefix,omitempty"`
	DocumentBaseID     string   `json:"document_base_id,omitempty"`
	Version            int      `json:"version,omitempty"`
	Author             string   `json:"author,omitempty"`
	VulnerabilityNames []string `json:"vulnerability_names,omitempty"`
}
