package auth

// Status is the outcome class of a login or refresh attempt
type Status int

const (
	// StatusSuccess means Result.Account is usable
	StatusSuccess Status = iota
	// StatusRequiresTwoFactor means the account is 2FA protected and the
	// caller should retry with "password:otp" (ely.by convention)
	StatusRequiresTwoFactor
	// StatusFailed is a non-recoverable outcome (wrong password, denied
	// or expired oauth flow). Not retried automatically – the caller has
	// to start a new login.
	StatusFailed
)

// Result is what every provider login/refresh operation resolves to
type Result struct {
	Status Status
	// Account is set for StatusSuccess
	Account *Account
	// Message is set for StatusFailed
	Message string

	// RefreshSecret is the long lived secret to persist for this account.
	// The Manager moves it into the credential store and blanks it before
	// the Result ever reaches a caller.
	RefreshSecret string
}

// Success wraps an account (and the secret to persist) in a Result
func Success(account *Account, refreshSecret string) *Result {
	return &Result{Status: StatusSuccess, Account: account, RefreshSecret: refreshSecret}
}

// Failed returns a failed Result with the given user facing message
func Failed(message string) *Result {
	return &Result{Status: StatusFailed, Message: message}
}
