package saltapi

import "encoding/json"

// Credentials are sent to the login endpoint. Password is nil for
// external authentication backends that do not use one, such as
// kerberos.
type Credentials struct {
	Username    string  `json:"username"`
	Password    *string `json:"password"`
	Eauth       string  `json:"eauth"`
	TokenExpire *int    `json:"token_expire,omitempty"`
}

// Token is the session issued by salt-api after a successful login.
type Token struct {
	Token  string        `json:"token"`
	Expire float64       `json:"expire"`
	Start  float64       `json:"start,omitempty"`
	Perms  []interface{} `json:"perms,omitempty"`
	User   string        `json:"user,omitempty"`
	Eauth  string        `json:"eauth,omitempty"`
}

// Response is the envelope of every salt-api answer.
type Response struct {
	Return []interface{} `json:"return"`
}

// AsyncJob is the first return of a local_async submission.
type AsyncJob struct {
	JID     string   `json:"jid"`
	Minions []string `json:"minions"`
}

type tokenResponse struct {
	Return []Token `json:"return"`
}

// decodeInto converts a generic JSON value into a typed one.
func decodeInto(value interface{}, target interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
