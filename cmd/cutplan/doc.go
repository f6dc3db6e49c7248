// Command cutplan is the command line front end for cutplan project files:
// creating projects, inspecting timelines and the command log, and driving
// undo, redo, and replay.
package main
