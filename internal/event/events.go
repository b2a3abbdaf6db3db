package event

import "time"

type CustomerEventPayload struct {
	CustomerID    int64  `json:"customerId"`
	Name          string `json:"name"`
	Age           int    `json:"age"`
	PhoneNumber   string `json:"phoneNumber"`
	MonthlyIncome string `json:"monthlyIncome"`
	ApprovedLimit string `json:"approvedLimit"`
}

type CustomerRegisteredEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

type LoanEventPayload struct {
	LoanID             int64  `json:"loanId"`
	CustomerID         int64  `json:"customerId"`
	LoanAmount         string `json:"loanAmount"`
	InterestRate       string `json:"interestRate"`
	TenureMonths       int    `json:"tenureMonths"`
	MonthlyInstallment string `json:"monthlyInstallment"`
	StartDate          string `json:"startDate"`
	EndDate            string `json:"endDate"`
}

type LoanApprovedEvent struct {
	Timestamp   time.Time        `json:"timestamp"`
	CreditScore int              `json:"creditScore"`
	Payload     LoanEventPayload `json:"payload"`
}
