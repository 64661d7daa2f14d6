package keychain

// Profile is the persisted form of a keychain, as found in profile.js.
// Binary fields are base64.
type Profile struct {
	LastUpdatedBy string `json:"lastUpdatedBy" bson:"lastUpdatedBy"`
	UpdatedAt     int64  `json:"updatedAt" bson:"updatedAt"`
	ProfileName   string `json:"profileName" bson:"profileName"`
	Salt          string `json:"salt" bson:"salt"`
	PasswordHint  string `json:"passwordHint" bson:"passwordHint"`
	MasterKey     string `json:"masterKey" bson:"masterKey"`
	Iterations    int    `json:"iterations" bson:"iterations"`
	UUID          string `json:"uuid" bson:"uuid"`
	OverviewKey   string `json:"overviewKey" bson:"overviewKey"`
	CreatedAt     int64  `json:"createdAt" bson:"createdAt"`
}

// ItemRecord is the persisted form of an item, one entry of a band file.
// K, D and O hold the base64 keys, details and overview containers.
type ItemRecord struct {
	Category string `json:"category" bson:"category"`
	Created  int64  `json:"created" bson:"created"`
	D        string `json:"d" bson:"d"`
	Fave     int64  `json:"fave,omitempty" bson:"fave,omitempty"`
	Folder   string `json:"folder,omitempty" bson:"folder,omitempty"`
	HMAC     string `json:"hmac,omitempty" bson:"hmac,omitempty"`
	K        string `json:"k" bson:"k"`
	O        string `json:"o" bson:"o"`
	Trashed  bool   `json:"trashed,omitempty" bson:"trashed,omitempty"`
	Tx       int64  `json:"tx,omitempty" bson:"tx,omitempty"`
	Updated  int64  `json:"updated" bson:"updated"`
	UUID     string `json:"uuid" bson:"uuid"`
}
