// Package mail delivers password reset links for authkit.Engine.
//
// Both senders satisfy authkit.Mailer. [LogSender] only logs the link;
// [NATSSender] publishes a [Message] for a separate mail service to render
// and send.
package mail
