package domain

// PaymentIntentParams describes a tip charge to create at the gateway.
type PaymentIntentParams struct {
	AmountMinor    int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
}

type SubscriptionParams struct {
	CustomerID string
	PriceID    string
	Metadata   map[string]string
}

type Subscription struct {
	ID     string
	Status string
}

type CustomerParams struct {
	Email    string
	Name     string
	Metadata map[string]string
}

type Customer struct {
	ID    string
	Email string
	Name  string
}

type SetupIntentParams struct {
	CustomerID string
	Metadata   map[string]string
}

type SetupIntent struct {
	ID           string
	ClientSecret string
}
