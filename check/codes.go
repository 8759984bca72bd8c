package check

// Code is a stable numeric identifier for one kind of finding. Codes are
// grouped by hundreds per structure so new findings can be added without
// renumbering.
type Code int

const (
	// rdapConformance 100 - 199
	RdapConformanceMissing       Code = 100
	RdapConformanceInvalidParent Code = 101
	UnknownExtension             Code = 102
	ExpectedExtensionNotFound    Code = 103

	// links 200 - 299
	LinkMissingValueProperty Code = 200
	LinkMissingRelProperty   Code = 201
	LinkRelatedHasNoType     Code = 202
	LinkRelatedIsNotRdap     Code = 203
	LinkSelfHasNoType        Code = 204
	LinkSelfIsNotRdap        Code = 205
	LinkObjectClassHasNoSelf Code = 206
	LinkMissingHrefProperty  Code = 207
	LinkRelatedNotToRdap     Code = 208
	LinkTraversalLoop        Code = 209

	// domain variants 300 - 399
	VariantEmptyDomain Code = 300

	// events 400 - 499
	EventDateIsAbsent     Code = 400
	EventDateIsNotRfc3339 Code = 401
	EventActionIsAbsent   Code = 402

	// notices and remarks 500 - 599
	NoticeOrRemarkDescriptionIsAbsent Code = 500
	NoticeOrRemarkDescriptionIsString Code = 501

	// handle 600 - 699
	HandleIsEmpty Code = 600

	// status 700 - 799
	StatusIsEmpty Code = 700

	// roles 800 - 899
	RoleIsEmpty Code = 800

	// ldhName 900 - 999
	LdhNameInvalid             Code = 900
	LdhNameDocumentation       Code = 901
	LdhNameDoesNotMatchUnicode Code = 902

	// unicodeName 1000 - 1099
	UnicodeNameInvalidDomain  Code = 1000
	UnicodeNameInvalidUnicode Code = 1001

	// network or autnum name 1100 - 1199
	NetworkOrAutnumNameIsEmpty Code = 1100

	// network or autnum type 1200 - 1299
	NetworkOrAutnumTypeIsEmpty Code = 1200

	// IP addresses 1300 - 1399
	IPAddressMissing          Code = 1300
	IPAddressMalformed        Code = 1301
	IPAddressEndBeforeStart   Code = 1302
	IPAddressVersionMismatch  Code = 1303
	IPAddressMalformedVersion Code = 1304
	IPAddressListIsEmpty      Code = 1305
	IPAddressThisNetwork      Code = 1306
	IPAddressPrivateUse       Code = 1307
	IPAddressSharedNat        Code = 1308
	IPAddressLoopback         Code = 1309
	IPAddressLinkLocal        Code = 1310
	IPAddressUniqueLocal      Code = 1311
	IPAddressDocumentationNet Code = 1312
	IPAddressReservedNet      Code = 1313

	// autnum 1400 - 1499
	AutnumMissing        Code = 1400
	AutnumEndBeforeStart Code = 1401
	AutnumPrivateUse     Code = 1402
	AutnumDocumentation  Code = 1403
	AutnumReserved       Code = 1404

	// vCard 1500 - 1599
	VcardArrayIsEmpty Code = 1500
	VcardHasNoFn      Code = 1501
	VcardFnIsEmpty    Code = 1502

	// port43 1600 - 1699
	Port43IsEmpty Code = 1600

	// publicIds 1700 - 1799
	PublicIDTypeIsAbsent       Code = 1700
	PublicIDIdentifierIsAbsent Code = 1701

	// HTTP 1800 - 1899
	CorsAllowOriginRecommended         Code = 1800
	CorsAllowOriginStarRecommended     Code = 1801
	CorsAllowCredentialsNotRecommended Code = 1802
	ContentTypeIsAbsent                Code = 1803
	ContentTypeIsNotRdap               Code = 1804

	// Cidr0 1900 - 1999
	Cidr0V4PrefixIsAbsent Code = 1900
	Cidr0V4LengthIsAbsent Code = 1901
	Cidr0V6PrefixIsAbsent Code = 1902
	Cidr0V6LengthIsAbsent Code = 1903

	// ICANN profile 2000 - 2099
	MustUseHTTPS       Code = 2000
	AllowOriginNotStar Code = 2001

	// error response 2100 - 2199
	ErrorCodeIsAbsent       Code = 2100
	ErrorCodeStatusMismatch Code = 2101
)

type codeInfo struct {
	class   Class
	message string
}

var catalog = map[Code]codeInfo{
	RdapConformanceMissing:       {StdErr, "RFC 9083 requires 'rdapConformance' on the root object."},
	RdapConformanceInvalidParent: {StdErr, "'rdapConformance' can only appear at the top of response."},
	UnknownExtension:             {StdWarn, "declared extension may not be registered."},
	ExpectedExtensionNotFound:    {StdErr, "expected extension not found."},

	LinkMissingValueProperty: {StdErr, "'value' property not found in Link structure as required by RFC 9083"},
	LinkMissingRelProperty:   {StdErr, "'rel' property not found in Link structure as required by RFC 9083"},
	LinkRelatedHasNoType:     {StdWarn, "ambiguous follow because related link has no 'type' property"},
	LinkRelatedIsNotRdap:     {StdWarn, "ambiguous follow because related link does not have RDAP media type"},
	LinkSelfHasNoType:        {StdWarn, "self link has no 'type' property"},
	LinkSelfIsNotRdap:        {StdWarn, "self link does not have RDAP media type"},
	LinkObjectClassHasNoSelf: {SpecNote, "RFC 9083 recommends self links for all object classes"},
	LinkMissingHrefProperty:  {StdErr, "'href' property not found in Link structure as required by RFC 9083"},
	LinkRelatedNotToRdap:     {StdWarn, "related link with RDAP media type does not appear to reference an RDAP interface"},
	LinkTraversalLoop:        {StdWarn, "link target was skipped because it was already visited in this traversal"},

	VariantEmptyDomain: {StdWarn, "empty domain variant is ambiguous"},

	EventDateIsAbsent:     {StdErr, "event date is absent"},
	EventDateIsNotRfc3339: {StdErr, "event date is not RFC 3339 compliant"},
	EventActionIsAbsent:   {StdErr, "event action is absent"},

	NoticeOrRemarkDescriptionIsAbsent: {StdErr, "RFC 9083 requires a description in a notice or remark"},
	NoticeOrRemarkDescriptionIsString: {StdErr, "RFC 9083 requires a description to be an array of strings"},

	HandleIsEmpty: {StdWarn, "handle appears to be empty or only whitespace"},

	StatusIsEmpty: {StdErr, "status appears to be empty or only whitespace"},

	RoleIsEmpty: {StdErr, "role appears to be empty or only whitespace"},

	LdhNameInvalid:             {StdErr, "ldhName does not appear to be an LDH name"},
	LdhNameDocumentation:       {Info, "Documentation domain name. See RFC 6761"},
	LdhNameDoesNotMatchUnicode: {StdWarn, "Unicode name does not match LDH"},

	UnicodeNameInvalidDomain:  {StdErr, "unicodeName does not appear to be a domain name"},
	UnicodeNameInvalidUnicode: {StdErr, "unicodeName does not appear to be valid Unicode"},

	NetworkOrAutnumNameIsEmpty: {StdWarn, "name appears to be empty or only whitespace"},

	NetworkOrAutnumTypeIsEmpty: {StdWarn, "type appears to be empty or only whitespace"},

	IPAddressMissing:          {StdWarn, "start or end IP address is missing"},
	IPAddressMalformed:        {StdErr, "IP address is malformed"},
	IPAddressEndBeforeStart:   {StdWarn, "end IP address comes before start IP address"},
	IPAddressVersionMismatch:  {StdWarn, "IP version does not match IP address"},
	IPAddressMalformedVersion: {StdErr, "IP version is malformed"},
	IPAddressListIsEmpty:      {StdErr, "IP address list is empty"},
	IPAddressThisNetwork:      {Info, `"This network." See RFC 791`},
	IPAddressPrivateUse:       {Info, "Private use. See RFC 1918"},
	IPAddressSharedNat:        {Info, "Shared NAT network. See RFC 6598"},
	IPAddressLoopback:         {Info, "Loopback network. See RFC 1122"},
	IPAddressLinkLocal:        {Info, "Link local network. See RFC 3927"},
	IPAddressUniqueLocal:      {Info, "Unique local network. See RFC 8190"},
	IPAddressDocumentationNet: {Info, "Documentation network. See RFC 5737"},
	IPAddressReservedNet:      {Info, "Reserved network. See RFC 1112"},

	AutnumMissing:        {StdWarn, "start or end autnum is missing"},
	AutnumEndBeforeStart: {StdWarn, "end AS number comes before start AS number"},
	AutnumPrivateUse:     {Info, "Private use. See RFC 6996"},
	AutnumDocumentation:  {Info, "Documentation AS number. See RFC 5398"},
	AutnumReserved:       {Info, "Reserved AS number. See RFC 6996"},

	VcardArrayIsEmpty: {StdErr, "vCard array does not contain a vCard"},
	VcardHasNoFn:      {StdErr, "vCard has no fn property"},
	VcardFnIsEmpty:    {SpecNote, "vCard fn property is empty"},

	Port43IsEmpty: {StdErr, "port43 appears to be empty or only whitespace"},

	PublicIDTypeIsAbsent:       {StdErr, "publicId type is absent"},
	PublicIDIdentifierIsAbsent: {StdErr, "publicId identifier is absent"},

	CorsAllowOriginRecommended:         {StdWarn, "Use of access-control-allow-origin is recommended."},
	CorsAllowOriginStarRecommended:     {StdWarn, "Use of access-control-allow-origin with asterisk is recommended."},
	CorsAllowCredentialsNotRecommended: {StdWarn, "Use of access-control-allow-credentials is not recommended."},
	ContentTypeIsAbsent:                {StdErr, "No content-type header received."},
	ContentTypeIsNotRdap:               {StdErr, "Content-type is not application/rdap+json."},

	Cidr0V4PrefixIsAbsent: {Cidr0Err, "Cidr0 v4 prefix is absent"},
	Cidr0V4LengthIsAbsent: {Cidr0Err, "Cidr0 v4 length is absent"},
	Cidr0V6PrefixIsAbsent: {Cidr0Err, "Cidr0 v6 prefix is absent"},
	Cidr0V6LengthIsAbsent: {Cidr0Err, "Cidr0 v6 length is absent"},

	MustUseHTTPS:       {IcannErr, "RDAP Service Must use HTTPS."},
	AllowOriginNotStar: {IcannErr, "access-control-allow-origin is not asterisk"},

	ErrorCodeIsAbsent:       {StdErr, "RFC 9083 requires 'errorCode' in an error response"},
	ErrorCodeStatusMismatch: {StdErr, "errorCode does not match the HTTP status code"},
}

// Message returns the human-readable description for the code.
func (c Code) Message() string {
	if info, ok := catalog[c]; ok {
		return info.message
	}
	return "unknown check"
}

// DefaultClass returns the class the code is filed under.
func (c Code) DefaultClass() Class {
	return catalog[c].class
}

// item builds the Item for a code with its catalog class.
func (c Code) item() Item {
	return Item{Class: c.DefaultClass(), Code: c}
}
