package adapter

// Token represents an API credential of an exchange account.
type Token struct {
	Key        string
	Secret     string
	Passphrase string
}

// NewToken creates an API token. The passphrase is only used by OKX.
func NewToken(key, secret, passphrase string) Token {
	return Token{
		Key:        key,
		Secret:     secret,
		Passphrase: passphrase,
	}
}

// IsEmpty reports whether the token carries no key.
func (t Token) IsEmpty() bool {
	return len(t.Key) == 0
}
