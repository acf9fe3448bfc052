package mailer

import "fmt"

// Registered greets a new account.
func Registered(to string) Message {
	return Message{
		To:      to,
		Subject: "Registering an Account",
		Body:    "Successful Registration! Yay!",
	}
}

// ChosenForJob tells a worker they were picked.
func ChosenForJob(to, title, dateActivity string, duration int) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Congrats! You were chosen for %s", title),
		Body: fmt.Sprintf("You were chosen to complete %s. The date of the quest is %s and should last %d minutes. "+
			"For more information, check your Jobs section in your profile!", title, dateActivity, duration),
	}
}

// JobCompleted tells a poster their job is done.
func JobCompleted(to, title, receiverFirst string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("The side quest %s has been complete", title),
		Body:    fmt.Sprintf("Your side quest has been completed. Please reach out to %s!", receiverFirst),
	}
}
